package units

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-token-client/internal/domain"
)

func wei(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func TestFormatUnits(t *testing.T) {
	cases := map[string]string{
		"0":                     "0.0",
		"1000000000000000000":   "1.0",
		"1500000000000000000":   "1.5",
		"1":                     "0.000000000000000001",
		"123456000000000000000": "123.456",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatUnits(wei(in)), in)
	}
	assert.Equal(t, "0.0", FormatUnits(nil))
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.String())

	v, err = ParseUnits(" 100 ")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000", v.String())

	_, err = ParseUnits("0.0000000000000000001")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ParseUnits("-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ParseUnits("abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParsePositiveUnits(t *testing.T) {
	_, err := ParsePositiveUnits("0")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	v, err := ParsePositiveUnits("0.1")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", v.String())
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, s := range []string{"0.0", "1.0", "42.000000000000000001"} {
		v, err := ParseUnits(s)
		require.NoError(t, err)
		assert.Equal(t, s, FormatUnits(v))
	}
}

func TestInt64(t *testing.T) {
	n, err := Int64("roundCount", big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	huge := new(big.Int).Lsh(big.NewInt(1), 64)
	_, err = Int64("voteCount", huge)
	var oe *domain.OverflowError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "voteCount", oe.Field)
	assert.Equal(t, huge.String(), oe.Value)
}
