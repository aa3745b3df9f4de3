package signalfit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLookup(vals map[string]float64) func(string) (float64, bool) {
	return func(label string) (float64, bool) {
		v, ok := vals[label]
		return v, ok
	}
}

func TestEvalCombo(t *testing.T) {
	lookup := testLookup(map[string]float64{"f0": 10, "f1": 3})

	cases := []struct {
		expr string
		want float64
	}{
		{"f0+f1", 13},
		{"f0-f1", 7},
		{"2*f0", 20},
		{"f0+2*f1", 16},
		{"f0/2", 5},
		{"f0 + f1", 13},
		{"f0*f1+1", 31},
		{"-f1+f0", 7},
		{"3.5", 3.5},
	}
	for _, tc := range cases {
		got, err := EvalCombo(tc.expr, lookup)
		require.NoError(t, err, tc.expr)
		assert.InDelta(t, tc.want, got, 1e-12, tc.expr)
	}
}

func TestEvalCombo_Errors(t *testing.T) {
	lookup := testLookup(map[string]float64{"f0": 10})

	for _, expr := range []string{"", "f9", "f0+", "f0/0", "f0$2", "+"} {
		_, err := EvalCombo(expr, lookup)
		assert.ErrorIs(t, err, ErrBadCombo, "expr %q", expr)
	}
}

func TestComboTerms(t *testing.T) {
	assert.Equal(t, []string{"f0", "f1"}, ComboTerms("f0+2*f1-f0"))
	assert.Empty(t, ComboTerms("2.5*3"))
}

func TestIsCombo(t *testing.T) {
	assert.True(t, IsCombo("f0+f1"))
	assert.True(t, IsCombo("2*f1"))
	assert.False(t, IsCombo("12.5"))
	assert.False(t, IsCombo("f0"))
}
