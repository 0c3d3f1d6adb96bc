package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims and drops blanks", input: []string{" pep ", "", "   "}, expected: []string{"pep"}},
		{name: "keeps first occurrence", input: []string{"sanctions", "pep", "sanctions"}, expected: []string{"sanctions", "pep"}},
		{name: "case sensitive", input: []string{"PEP", "pep"}, expected: []string{"PEP", "pep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	assert.Equal(t,
		[]string{"cdr_financial_data", "aml_screening"},
		DedupeAndTrimLower([]string{" CDR_Financial_Data", "aml_screening", "cdr_financial_data "}),
	)
}

func TestDedupe_CustomNormalizer(t *testing.T) {
	got := Dedupe([]string{"score_high", "SCORE_HIGH", "alerts"}, strings.ToUpper)
	assert.Equal(t, []string{"SCORE_HIGH", "ALERTS"}, got)
}
