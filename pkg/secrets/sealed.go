package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/nacl/secretbox"

	"onboard/pkg/platform/sentinel"
)

const nonceSize = 24

var ErrUnseal = errors.New("secret could not be unsealed")

// SealedSource opens secretbox-sealed bundles stored base64 in
// SECRET_<ID>_SEALED. The layout is nonce || box.
type SealedSource struct {
	key    [32]byte
	lookup func(string) (string, bool)
}

// NewSealedSource takes a base64 encoded 32-byte key.
func NewSealedSource(encodedKey string) (*SealedSource, error) {
	key, err := decodeKey(encodedKey)
	if err != nil {
		return nil, err
	}
	return &SealedSource{key: key, lookup: os.LookupEnv}, nil
}

func (s *SealedSource) GetSecret(_ context.Context, id string) (Bundle, error) {
	encoded, ok := s.lookup(envKey(id, "_SEALED"))
	if !ok || encoded == "" {
		return Bundle{}, fmt.Errorf("secret %q: %w", id, sentinel.ErrNotFound)
	}
	raw, err := Open(s.key, encoded)
	if err != nil {
		return Bundle{}, fmt.Errorf("secret %q: %w", id, err)
	}
	return decodeBundle(id, raw)
}

// Seal encrypts plaintext under key and returns the base64 envelope.
func Seal(key [32]byte, plaintext []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plaintext, &nonce, &key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal.
func Open(key [32]byte, encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return nil, ErrUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &key)
	if !ok {
		return nil, ErrUnseal
	}
	return out, nil
}

func decodeKey(encoded string) ([32]byte, error) {
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return key, fmt.Errorf("decode sealing key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("sealing key must be %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
