package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

var newGCM = cipher.NewGCM

var errInvalidKey = errors.New("LIVESEARCH_SECRETS_KEY must be 32 bytes or base64-encoded 32 bytes")

func ParseKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, errors.New("LIVESEARCH_SECRETS_KEY is required")
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		return nil, errInvalidKey
	}
	return decoded, nil
}

// Cipher seals provider API keys before they reach the store.
type Cipher struct {
	key []byte
}

func NewCipher(raw string) (*Cipher, error) {
	key, err := ParseKey(raw)
	if err != nil {
		return nil, err
	}
	return &Cipher{key: key}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	return Encrypt(c.key, plaintext)
}

func (c *Cipher) Decrypt(encoded string) (string, error) {
	return Decrypt(c.key, encoded)
}

func Encrypt(key []byte, plaintext string) (string, error) {
	gcm, err := aead(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func Decrypt(key []byte, encoded string) (string, error) {
	gcm, err := aead(key)
	if err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", errors.New("invalid encrypted secret")
	}
	plain, err := gcm.Open(nil, data[:gcm.NonceSize()], data[gcm.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Hint returns the last four characters of a key for display.
func Hint(apiKey string) string {
	if len(apiKey) < 4 {
		return ""
	}
	return apiKey[len(apiKey)-4:]
}

func aead(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return newGCM(block)
}
