package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC) // a Monday

	tests := []struct {
		in   string
		want string
	}{
		{"2025-04-01", "2025-04-01"},
		{"tomorrow", "2025-03-11"},
		{"in 3 days", "2025-03-13"},
		{"none", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := parseDate(tt.in, now)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	_, err := parseDate("whenever you like", now)
	assert.Error(t, err)
}
