package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmountsEqual(t *testing.T) {
	require.True(t, AmountsEqual(100.00, 100.00))
	require.True(t, AmountsEqual(100.00, 100.01))
	require.True(t, AmountsEqual(0.1+0.2, 0.3))
	require.False(t, AmountsEqual(100.00, 100.02))
}

func TestKobo(t *testing.T) {
	tests := []struct {
		naira float64
		kobo  int64
	}{
		{0, 0},
		{1, 100},
		{250_000, 25_000_000},
		{1234.56, 123_456},
		{0.1 + 0.2, 30},
		{19.99, 1_999},
	}

	for _, tt := range tests {
		require.Equal(t, tt.kobo, Kobo(tt.naira), "naira %.4f", tt.naira)
	}
}
