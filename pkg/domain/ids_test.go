package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboard/pkg/domain-errors"
)

// TestParseProcessID_Invariants validates that process ids are valid, non-empty,
// non-nil UUIDs.
//
// Justification: pure function enforcing an invariant at the trigger boundary.
func TestParseProcessID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseProcessID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseProcessID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseProcessID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseProcessID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, ProcessID(raw), id)
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE onboarding_processes;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errProcess := ParseProcessID(tt.input)
			_, errCustomer := ParseCustomerID(tt.input)
			if tt.wantErr {
				require.Error(t, errProcess)
				require.Error(t, errCustomer)
				assert.True(t, dErrors.HasCode(errProcess, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, errProcess)
			require.NoError(t, errCustomer)
		})
	}
}

func TestCustomerIDFor(t *testing.T) {
	p := NewProcessID()

	t.Run("stable for the same process", func(t *testing.T) {
		assert.Equal(t, CustomerIDFor(p), CustomerIDFor(p))
	})

	t.Run("distinct across processes", func(t *testing.T) {
		assert.NotEqual(t, CustomerIDFor(p), CustomerIDFor(NewProcessID()))
	})

	t.Run("never nil", func(t *testing.T) {
		assert.False(t, CustomerIDFor(p).IsNil())
	})
}
