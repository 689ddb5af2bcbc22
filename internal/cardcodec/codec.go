// Package cardcodec maps a (balance, student identity) pair to and from the
// fixed 16-byte data blocks stored on a contactless card.
//
// The balance block is XOR-obfuscated with a fixed key. This deters casual
// tampering with a hex dump of the card and nothing more — it is not
// confidentiality. A deployment that needs real security properties should
// swap an authenticated encryption primitive in at this boundary; no other
// package depends on the obfuscation scheme.
package cardcodec

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// BlockSize is the width of one Mifare Classic data block.
const BlockSize = 16

// xorKey obfuscates the balance block byte-wise.
const xorKey = 0xA5

var (
	// ErrEncodingOverflow means the rendered value does not fit one block.
	ErrEncodingOverflow = errors.New("cardcodec: encoded value exceeds block size")

	// ErrDecodeBalance means the balance block did not decode to a valid
	// non-negative amount. Callers must treat the card as unreadable, never
	// as holding a zero balance.
	ErrDecodeBalance = errors.New("cardcodec: balance block unreadable")
)

// EncodeBalance renders the balance with exactly two fractional digits,
// NUL-pads to the block width, and applies the XOR obfuscation.
func EncodeBalance(balance decimal.Decimal) ([]byte, error) {
	s := balance.StringFixed(2)
	if len(s) > BlockSize {
		return nil, fmt.Errorf("%w: %q", ErrEncodingOverflow, s)
	}
	block := make([]byte, BlockSize)
	copy(block, s)
	for i := range block {
		block[i] ^= xorKey
	}
	return block, nil
}

// DecodeBalance reverses EncodeBalance. Corrupt, non-numeric, or negative
// content yields ErrDecodeBalance.
func DecodeBalance(block []byte) (decimal.Decimal, error) {
	if len(block) != BlockSize {
		return decimal.Decimal{}, fmt.Errorf("%w: got %d bytes", ErrDecodeBalance, len(block))
	}
	plain := make([]byte, BlockSize)
	for i, b := range block {
		plain[i] = b ^ xorKey
	}
	s := string(bytes.TrimRight(plain, "\x00"))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrDecodeBalance, s)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: negative %s", ErrDecodeBalance, s)
	}
	return d, nil
}

// EncodeIdentity stores the student identifier as UTF-8, truncated to the
// block width and NUL-padded. No obfuscation — the identity is not secret.
func EncodeIdentity(token string) []byte {
	block := make([]byte, BlockSize)
	copy(block, token)
	return block
}

// DecodeIdentity strips trailing NULs from an identity block.
func DecodeIdentity(block []byte) string {
	return string(bytes.TrimRight(block, "\x00"))
}

// Checksum digests the canonical "balance:identity" string to eight hex
// characters. It detects corruption and casual edits of either field; it is
// not a cryptographic integrity guarantee.
func Checksum(balance decimal.Decimal, identity string) string {
	sum := md5.Sum([]byte(balance.StringFixed(2) + ":" + identity))
	return hex.EncodeToString(sum[:])[:8]
}

// EncodeChecksum renders the checksum as a NUL-padded block.
func EncodeChecksum(balance decimal.Decimal, identity string) []byte {
	block := make([]byte, BlockSize)
	copy(block, Checksum(balance, identity))
	return block
}

// DecodeChecksum strips trailing NULs from a checksum block.
func DecodeChecksum(block []byte) string {
	return string(bytes.TrimRight(block, "\x00"))
}
