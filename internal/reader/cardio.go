package reader

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cardcodec"
)

// CardData is the decoded content of a card's data blocks.
type CardData struct {
	Balance  decimal.Decimal
	Identity string
}

// BlockIO is the slice of Session used for card data transfer. Tests supply
// fakes through it.
type BlockIO interface {
	ReadBlock(block byte) ([]byte, error)
	WriteBlock(block byte, data []byte) error
}

// ReadCard reads and decodes the balance, identity, and checksum blocks,
// failing with ErrChecksumMismatch when the stored checksum does not match
// the decoded fields. A mismatch means "unknown", never "zero balance".
func ReadCard(io BlockIO) (CardData, error) {
	balBlock, err := io.ReadBlock(BalanceBlock)
	if err != nil {
		return CardData{}, err
	}
	balance, err := cardcodec.DecodeBalance(balBlock)
	if err != nil {
		return CardData{}, err
	}

	idBlock, err := io.ReadBlock(IdentityBlock)
	if err != nil {
		return CardData{}, err
	}
	identity := cardcodec.DecodeIdentity(idBlock)

	sumBlock, err := io.ReadBlock(ChecksumBlock)
	if err != nil {
		return CardData{}, err
	}
	if got, want := cardcodec.DecodeChecksum(sumBlock), cardcodec.Checksum(balance, identity); got != want {
		return CardData{}, fmt.Errorf("%w: got %q want %q", ErrChecksumMismatch, got, want)
	}

	return CardData{Balance: balance, Identity: identity}, nil
}

// WriteCard encodes and writes all three data blocks. Partial writes leave
// the checksum stale, which ReadCard will flag.
func WriteCard(io BlockIO, balance decimal.Decimal, identity string) error {
	balBlock, err := cardcodec.EncodeBalance(balance)
	if err != nil {
		return err
	}
	if err := io.WriteBlock(BalanceBlock, balBlock); err != nil {
		return err
	}
	if err := io.WriteBlock(IdentityBlock, cardcodec.EncodeIdentity(identity)); err != nil {
		return err
	}
	if err := io.WriteBlock(ChecksumBlock, cardcodec.EncodeChecksum(balance, identity)); err != nil {
		return err
	}
	return nil
}

// IsTransportError reports whether err is a reader/transport failure that
// should trigger the offline fallback, as opposed to corrupt card data.
func IsTransportError(err error) bool {
	var se *StatusError
	return errors.Is(err, ErrNoReader) ||
		errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrNoCard) ||
		errors.As(err, &se)
}
