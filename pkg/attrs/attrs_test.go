package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	list := []any{"stage", "aml_screening", "simulated", true, 42, "ignored", "dangling"}

	assert.Equal(t, "aml_screening", ExtractString(list, "stage"))
	assert.True(t, ExtractBool(list, "simulated"))
	assert.Equal(t, "", ExtractString(list, "simulated"))
	assert.Equal(t, "", ExtractString(list, "dangling"))
	assert.False(t, ExtractBool(nil, "simulated"))
}
