package stub

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures overrides canned stub answers, keyed by provider id.
//
//	providers:
//	  aml-screening:
//	    payload:
//	      risk_score: 80
//	  cdr-primary:
//	    error: provider_outage
//	pending_polls: 2
type Fixtures struct {
	Providers    map[string]Fixture `yaml:"providers"`
	PendingPolls *int               `yaml:"pending_polls"`
}

// Fixture replaces parts of one provider's canned response. Payload keys are
// merged over the defaults; Error forces a ProviderError of that category.
type Fixture struct {
	Verified *bool          `yaml:"verified"`
	Reason   string         `yaml:"reason"`
	Error    string         `yaml:"error"`
	Payload  map[string]any `yaml:"payload"`
}

func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse stub fixtures: %w", err)
	}
	if f.PendingPolls != nil && *f.PendingPolls < 0 {
		return Fixtures{}, fmt.Errorf("parse stub fixtures: pending_polls must be >= 0")
	}
	return f, nil
}

// LoadFixtures reads a YAML fixture file. An empty path yields no overrides.
func LoadFixtures(path string) (Fixtures, error) {
	if path == "" {
		return Fixtures{}, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return Fixtures{}, fmt.Errorf("read stub fixtures: %w", err)
	}
	return ParseFixtures(data)
}
