package plate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		readings []string
		found    bool
		text     string
		strict   bool
	}{
		{
			name:     "Livery prefix stripped",
			readings: []string{"BSDCITY B 7566 PAA EXPRESS"},
			found:    true,
			text:     "B7566PAA",
			strict:   true,
		},
		{
			name:     "Lower case reading",
			readings: []string{"b 7266 jf"},
			found:    true,
			text:     "B7266JF",
			strict:   true,
		},
		{
			name:     "Strict match wins over earlier lenient reading",
			readings: []string{"B 12", "DK 1234 AB"},
			found:    true,
			text:     "DK1234AB",
			strict:   true,
		},
		{
			name:     "Lenient match repaired with identifier token",
			readings: []string{"B 7366 - JE"},
			found:    true,
			text:     "B7366JE",
			strict:   false,
		},
		{
			name:     "Lenient match ignores BS and SD tokens",
			readings: []string{"B 7366 - SD"},
			found:    true,
			text:     "B7366",
			strict:   false,
		},
		{
			name:     "Lenient match without identifier",
			readings: []string{"B 7002"},
			found:    true,
			text:     "B7002",
			strict:   false,
		},
		{
			name:     "Only livery text",
			readings: []string{"BSDCITY", "BUSWAY TRANS"},
			found:    false,
		},
		{
			name:     "No readings",
			readings: nil,
			found:    false,
		},
		{
			name:     "Digits only",
			readings: []string{"7566"},
			found:    false,
		},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := e.Extract(tt.readings)
			require.Equal(t, tt.found, ok)
			if !tt.found {
				return
			}
			assert.Equal(t, tt.text, c.Text)
			assert.Equal(t, tt.strict, c.Strict)
		})
	}
}

func TestExtractStrictSkipsLenient(t *testing.T) {
	e := NewExtractor()

	_, ok := e.ExtractStrict([]string{"B 7002"})
	assert.False(t, ok)

	c, ok := e.ExtractStrict([]string{"noise", "B 7002 PGX"})
	require.True(t, ok)
	assert.Equal(t, "B7002PGX", c.Text)
	assert.Equal(t, "B 7002 PGX", c.Display())
}
