package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1.29.2", "1.29.2"},
		{"docker-compose version 1.4.2, build b0a1bc1", "1.4.2"},
		{"v2.27.0-desktop.1", "2.27.0"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}

	_, err := Parse("unknown")
	assert.Error(t, err)
}

func TestNeedsSubstitution(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"1.4.2", true},
		{"1.5.0", false},
		{"1.29.2", false},
		{"2.27.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NeedsSubstitution(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetVersion(t *testing.T) {
	_, err := Parse(GetVersion())
	assert.NoError(t, err)
}
