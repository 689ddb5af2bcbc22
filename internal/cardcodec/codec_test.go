package cardcodec_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cardcodec"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEncodeBalance_RoundTrip(t *testing.T) {
	cases := []string{"0.00", "0.01", "5.50", "13.50", "999.99", "12345.67", "99999.99"}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			block, err := cardcodec.EncodeBalance(dec(c))
			require.NoError(t, err)
			require.Len(t, block, cardcodec.BlockSize)

			got, err := cardcodec.DecodeBalance(block)
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(c)), "got %s, want %s", got, c)
		})
	}
}

func TestEncodeBalance_Obfuscated(t *testing.T) {
	block, err := cardcodec.EncodeBalance(dec("10.00"))
	require.NoError(t, err)
	// The rendered string must not appear in the clear on the card.
	assert.NotContains(t, string(block), "10.00")
}

func TestEncodeBalance_Overflow(t *testing.T) {
	// 17 significant characters rendered at two decimals.
	_, err := cardcodec.EncodeBalance(dec("123456789012345.99"))
	assert.ErrorIs(t, err, cardcodec.ErrEncodingOverflow)
}

func TestDecodeBalance_Corrupt(t *testing.T) {
	cases := map[string][]byte{
		"short block":  make([]byte, 4),
		"garbage":      {0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		"all zero xor": make([]byte, cardcodec.BlockSize), // decodes to all-0xA5 bytes
	}
	for name, block := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := cardcodec.DecodeBalance(block)
			assert.ErrorIs(t, err, cardcodec.ErrDecodeBalance)
		})
	}
}

func TestDecodeBalance_NegativeRejected(t *testing.T) {
	block, err := cardcodec.EncodeBalance(dec("-4.20"))
	require.NoError(t, err) // encoding renders whatever it is given
	_, err = cardcodec.DecodeBalance(block)
	assert.ErrorIs(t, err, cardcodec.ErrDecodeBalance)
}

func TestIdentity_RoundTrip(t *testing.T) {
	for _, token := range []string{"", "S001", "STU-2026-0042", "abcdefghijklmnop"} {
		block := cardcodec.EncodeIdentity(token)
		require.Len(t, block, cardcodec.BlockSize)
		assert.Equal(t, token, cardcodec.DecodeIdentity(block))
	}
}

func TestIdentity_TruncatedToBlock(t *testing.T) {
	block := cardcodec.EncodeIdentity("this-is-longer-than-sixteen-bytes")
	assert.Equal(t, "this-is-longer-t", cardcodec.DecodeIdentity(block))
}

func TestChecksum_Deterministic(t *testing.T) {
	a := cardcodec.Checksum(dec("20.00"), "S001")
	b := cardcodec.Checksum(dec("20.00"), "S001")
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}

func TestChecksum_SensitiveToEitherField(t *testing.T) {
	base := cardcodec.Checksum(dec("20.00"), "S001")
	assert.NotEqual(t, base, cardcodec.Checksum(dec("20.01"), "S001"))
	assert.NotEqual(t, base, cardcodec.Checksum(dec("20.00"), "S002"))
	assert.NotEqual(t, base, cardcodec.Checksum(dec("20.00"), ""))
}

func TestChecksum_BlockRoundTrip(t *testing.T) {
	block := cardcodec.EncodeChecksum(dec("13.50"), "S001")
	assert.Equal(t, cardcodec.Checksum(dec("13.50"), "S001"), cardcodec.DecodeChecksum(block))
}
