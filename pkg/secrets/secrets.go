// Package secrets resolves provider credential bundles by id. Only the
// provider gateway's token acquisition reads them.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"onboard/pkg/platform/sentinel"
)

// Bundle is the credential set a provider needs to mint access tokens.
type Bundle struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
	Audience     string `json:"audience,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
}

// Complete reports whether the bundle carries enough to request a token or
// call a key-authenticated provider.
func (b Bundle) Complete() bool {
	if b.APIKey != "" {
		return true
	}
	return b.ClientID != "" && b.ClientSecret != "" && b.TokenURL != ""
}

// Source retrieves a bundle by id. Missing ids return an error wrapping
// sentinel.ErrNotFound.
type Source interface {
	GetSecret(ctx context.Context, id string) (Bundle, error)
}

func decodeBundle(id string, raw []byte) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode secret %q: %w", id, err)
	}
	return b, nil
}

// envKey maps "identity-provider" to "SECRET_IDENTITY_PROVIDER".
func envKey(id, suffix string) string {
	key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(id))
	return "SECRET_" + key + suffix
}

// EnvSource reads plaintext JSON bundles from SECRET_<ID> environment variables.
// Intended for development and CI.
type EnvSource struct {
	lookup func(string) (string, bool)
}

func NewEnvSource() *EnvSource {
	return &EnvSource{lookup: os.LookupEnv}
}

func (s *EnvSource) GetSecret(_ context.Context, id string) (Bundle, error) {
	raw, ok := s.lookup(envKey(id, ""))
	if !ok || raw == "" {
		return Bundle{}, fmt.Errorf("secret %q: %w", id, sentinel.ErrNotFound)
	}
	return decodeBundle(id, []byte(raw))
}

// StaticSource serves bundles from memory (tests, stub deployments).
type StaticSource map[string]Bundle

func (s StaticSource) GetSecret(_ context.Context, id string) (Bundle, error) {
	b, ok := s[id]
	if !ok {
		return Bundle{}, fmt.Errorf("secret %q: %w", id, sentinel.ErrNotFound)
	}
	return b, nil
}
