// Package credentials encrypts provider rail credentials (ACH originator
// IDs, FedNow participant keys) at rest, deriving a per-tenant key from one
// master key via HKDF rather than storing one key per tenant.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrEmptyMasterKey  = errors.New("credentials: master key is empty")
	ErrCiphertextShort = errors.New("credentials: ciphertext is too short to contain a nonce")
)

// deriveKey expands masterKey into a 32-byte AES-256 key scoped to tenantID,
// via HKDF-SHA256 — the same primitive the teacher uses argon2 for in
// auth/password, generalized from password hashing to key derivation.
func deriveKey(masterKey []byte, tenantID string) ([]byte, error) {
	if len(masterKey) == 0 {
		return nil, ErrEmptyMasterKey
	}
	reader := hkdf.New(sha256.New, masterKey, nil, []byte("pspcore:provider-credential:"+tenantID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext under a key derived from masterKey and tenantID.
// The returned blob is nonce||ciphertext, AES-256-GCM sealed.
func Encrypt(masterKey []byte, tenantID string, plaintext []byte) ([]byte, error) {
	key, err := deriveKey(masterKey, tenantID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. tenantID must match the value Encrypt was
// called with — credentials do not travel between tenants.
func Decrypt(masterKey []byte, tenantID string, blob []byte) ([]byte, error) {
	key, err := deriveKey(masterKey, tenantID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, ErrCiphertextShort
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
