// Package payloadcodec snappy-compresses the large, write-heavy,
// rarely-read blobs that pass through the PSP core: rail provider attempt
// responses and settlement feed raw records.
package payloadcodec

import "github.com/golang/snappy"

// Encode compresses raw for storage. Returns nil for an empty input so
// callers don't have to special-case "no payload".
func Encode(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return snappy.Encode(nil, raw)
}

// Decode reverses Encode. Returns nil, nil for an empty input.
func Decode(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, nil
	}
	return snappy.Decode(nil, compressed)
}
