package credentials

import "github.com/smallbiznis/pspcore/internal/config"

// Codec binds Encrypt/Decrypt to the deployment's master key, so callers
// never have to thread the raw key past fx wiring.
type Codec struct {
	masterKey []byte
}

func NewCodec(cfg config.Config) *Codec {
	return &Codec{masterKey: []byte(cfg.ProviderCredentialMasterKey)}
}

func (c *Codec) Encrypt(tenantID string, plaintext []byte) ([]byte, error) {
	return Encrypt(c.masterKey, tenantID, plaintext)
}

func (c *Codec) Decrypt(tenantID string, blob []byte) ([]byte, error) {
	return Decrypt(c.masterKey, tenantID, blob)
}
