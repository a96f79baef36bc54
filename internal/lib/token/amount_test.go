package token

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		in       string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"100", 18, "100000000000000000000", false},
		{"1000000", 18, "1000000000000000000000000", false},
		{"0.25", 18, "250000000000000000", false},
		{".5", 2, "50", false},
		{"7", 0, "7", false},
		{"0", 18, "0", false},
		{"1.234", 2, "", true},
		{"abc", 18, "", true},
		{"-1", 18, "", true},
		{"", 18, "", true},
		{"1.2.3", 18, "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in, tc.decimals)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Dec())
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100", FormatAmount(Tokens(100), DefaultDecimals))
	assert.Equal(t, "0.000000000000000001", FormatAmount(uint256.NewInt(1), DefaultDecimals))
	assert.Equal(t, "1.5", FormatAmount(uint256.NewInt(150), 2))
	assert.Equal(t, "0", FormatAmount(new(uint256.Int), DefaultDecimals))
	assert.Equal(t, "42", FormatAmount(uint256.NewInt(42), 0))
	assert.Equal(t, "0", FormatAmount(nil, DefaultDecimals))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, "1000000000000000000", Tokens(1).Dec())
	assert.True(t, Tokens(0).IsZero())
}
