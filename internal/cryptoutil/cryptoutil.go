// Package cryptoutil seals short secrets, such as bearer tokens, with AES-256-GCM.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Versioned prefix so a later algorithm or key rotation can coexist with sealed values.
const sealedPrefixV1 = "v1:"

// ErrUnknownVersion is returned by Open for values that were not produced by Seal.
var ErrUnknownVersion = errors.New("unknown sealed value version")

// Sealer encrypts and authenticates secrets. The assoc bytes are bound to the sealed
// value, so a value copied under different assoc bytes fails to open.
type Sealer interface {
	Seal(plaintext, assoc []byte) (string, error)
	Open(sealed string, assoc []byte) ([]byte, error)
}

// AESGCM implements Sealer using AES-256-GCM.
type AESGCM struct {
	aead cipher.AEAD
	rand io.Reader
}

var _ Sealer = (*AESGCM)(nil)

// NewAESGCM constructs an AESGCM sealer. Key must be 32 bytes.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aes-gcm key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead, rand: rand.Reader}, nil
}

// Seal encrypts plaintext with a random nonce and returns "v1:" + base64(nonce||ciphertext).
func (s *AESGCM) Seal(plaintext, assoc []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	buf := s.aead.Seal(nonce, nonce, plaintext, assoc)
	return sealedPrefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts a value produced by Seal with the same assoc bytes.
func (s *AESGCM) Open(sealed string, assoc []byte) ([]byte, error) {
	b64, ok := strings.CutPrefix(sealed, sealedPrefixV1)
	if !ok {
		return nil, ErrUnknownVersion
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize+s.aead.Overhead() {
		return nil, errors.New("sealed value too short")
	}
	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], assoc)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return pt, nil
}

// IsSealed reports whether v carries a known sealed-value prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefixV1)
}

// ParseKey decodes a 32-byte key given as base64 (standard or URL alphabet) or hex.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty key")
	}
	decoders := []func(string) ([]byte, error){
		hex.DecodeString,
		base64.StdEncoding.DecodeString,
		base64.RawStdEncoding.DecodeString,
		base64.URLEncoding.DecodeString,
		base64.RawURLEncoding.DecodeString,
	}
	for _, decode := range decoders {
		if key, err := decode(s); err == nil && len(key) == KeySize {
			return key, nil
		}
	}
	return nil, fmt.Errorf("key must be %d bytes encoded as hex or base64", KeySize)
}
