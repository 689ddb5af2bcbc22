package reader

import (
	"errors"
	"fmt"
)

var (
	// ErrNoReader means no contactless reader enumerated on this terminal.
	ErrNoReader = errors.New("reader: no reader found")

	// ErrCardTimeout means no card was presented within the wait bound.
	ErrCardTimeout = errors.New("reader: no card presented before timeout")

	// ErrNotConnected means the session holds no reader binding.
	ErrNotConnected = errors.New("reader: not connected")

	// ErrNoCard means a block operation was attempted with no card present.
	ErrNoCard = errors.New("reader: no card present")

	// ErrChecksumMismatch means on-card data failed checksum validation.
	// The card must be treated as unreadable, not as holding any balance.
	ErrChecksumMismatch = errors.New("reader: card data checksum mismatch")
)

// StatusError is a transport status-word failure on a specific block
// operation: authentication failure, wrong key, block out of range. Anything
// other than (0x90, 0x00) from the reader.
type StatusError struct {
	Op    string // "auth" | "read" | "write" | "uid"
	Block byte
	SW1   byte
	SW2   byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reader: %s block %d failed with status %02X %02X", e.Op, e.Block, e.SW1, e.SW2)
}
