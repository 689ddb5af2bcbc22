// Package reader owns the connection to one contactless reader and the card
// currently in its field. A Session is the exclusive owner of the physical
// device: presenting a card is an inherently serial act, so all operations
// take the session mutex and concurrent callers queue behind it.
package reader

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Device is the driver boundary to one physical reader. Implementations wrap
// a PC/SC stack; readertest provides a scripted in-memory fake.
type Device interface {
	// Bind claims the first available reader. Returns ErrNoReader when none
	// enumerate.
	Bind() error

	// Card attempts to connect to a card currently in the field. A missing
	// card is an error; polling loops treat it as "try again".
	Card() (CardConn, error)

	// Release drops the reader binding. Safe to call when unbound.
	Release()
}

// CardConn is one card connection capable of APDU exchange.
type CardConn interface {
	Transmit(cmd []byte) (data []byte, sw1, sw2 byte, err error)
	Close()
}

// Session drives one reader through the states
// Disconnected -> ReaderBound -> CardPresent. Any transport failure degrades
// the session back to Disconnected; callers fall back to the offline store.
type Session struct {
	mu sync.Mutex

	dev   Device
	conn  CardConn
	bound bool

	key          []byte
	pollInterval time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithKey overrides the block authentication key.
func WithKey(key []byte) Option {
	return func(s *Session) { s.key = key }
}

// WithPollInterval overrides the card presence polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

func NewSession(dev Device, opts ...Option) *Session {
	s := &Session{
		dev:          dev,
		key:          DefaultKeyA,
		pollInterval: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ConnectReader binds to the first available reader.
func (s *Session) ConnectReader() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound {
		return nil
	}
	if err := s.dev.Bind(); err != nil {
		return err
	}
	s.bound = true
	return nil
}

// WaitForCard polls for card presence until a card identifies itself or the
// timeout elapses. This is the single bounded-wait primitive: every caller
// that needs a card goes through it, and none may retry indefinitely. The
// returned UID is upper-case hex.
func (s *Session) WaitForCard(ctx context.Context, timeout time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bound {
		return "", ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	for {
		uid, err := s.tryCardLocked()
		if err == nil {
			return uid, nil
		}

		if time.Now().After(deadline) {
			return "", ErrCardTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// tryCardLocked attempts one connect+identify cycle. Holds any established
// connection on success so block operations can follow.
func (s *Session) tryCardLocked() (string, error) {
	if s.conn == nil {
		conn, err := s.dev.Card()
		if err != nil {
			return "", err
		}
		s.conn = conn
	}

	data, sw1, sw2, err := s.conn.Transmit(cmdGetUID())
	if err != nil {
		s.dropCardLocked()
		return "", err
	}
	if !statusOK(sw1, sw2) {
		s.dropCardLocked()
		return "", &StatusError{Op: "uid", SW1: sw1, SW2: sw2}
	}
	return strings.ToUpper(hex.EncodeToString(data)), nil
}

// CardUID re-identifies the card currently held by the session. Callers use
// it to confirm the card in the field is the one they mean to write before
// any data block changes.
func (s *Session) CardUID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bound {
		return "", ErrNotConnected
	}
	if s.conn == nil {
		return "", ErrNoCard
	}

	data, sw1, sw2, err := s.conn.Transmit(cmdGetUID())
	if err != nil {
		s.degradeLocked()
		return "", fmt.Errorf("card uid: %w", err)
	}
	if !statusOK(sw1, sw2) {
		s.dropCardLocked()
		return "", &StatusError{Op: "uid", SW1: sw1, SW2: sw2}
	}
	return strings.ToUpper(hex.EncodeToString(data)), nil
}

// ReadBlock authenticates against the block and reads its 16 bytes. The
// protocol is idempotent — reissuing after a failure is safe — but no retry
// happens here; callers own retry policy.
func (s *Session) ReadBlock(block byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authLocked(block); err != nil {
		return nil, err
	}

	data, sw1, sw2, err := s.conn.Transmit(cmdReadBlock(block))
	if err != nil {
		s.degradeLocked()
		return nil, fmt.Errorf("read block %d: %w", block, err)
	}
	if !statusOK(sw1, sw2) {
		return nil, &StatusError{Op: "read", Block: block, SW1: sw1, SW2: sw2}
	}
	return data, nil
}

// WriteBlock authenticates against the block and writes 16 bytes.
func (s *Session) WriteBlock(block byte, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data) != 16 {
		return fmt.Errorf("write block %d: need 16 bytes, got %d", block, len(data))
	}

	if err := s.authLocked(block); err != nil {
		return err
	}

	_, sw1, sw2, err := s.conn.Transmit(cmdWriteBlock(block, data))
	if err != nil {
		s.degradeLocked()
		return fmt.Errorf("write block %d: %w", block, err)
	}
	if !statusOK(sw1, sw2) {
		return &StatusError{Op: "write", Block: block, SW1: sw1, SW2: sw2}
	}
	return nil
}

func (s *Session) authLocked(block byte) error {
	if !s.bound {
		return ErrNotConnected
	}
	if s.conn == nil {
		return ErrNoCard
	}

	_, sw1, sw2, err := s.conn.Transmit(cmdAuth(block, s.key))
	if err != nil {
		s.degradeLocked()
		return fmt.Errorf("auth block %d: %w", block, err)
	}
	if !statusOK(sw1, sw2) {
		return &StatusError{Op: "auth", Block: block, SW1: sw1, SW2: sw2}
	}
	return nil
}

// Disconnect releases the card and the reader. Safe from any state,
// including already-disconnected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degradeLocked()
}

func (s *Session) dropCardLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) degradeLocked() {
	s.dropCardLocked()
	if s.bound {
		s.dev.Release()
		s.bound = false
	}
}

// unavailableDevice is the default device on builds without a PC/SC stack:
// Bind always reports no reader, putting the terminal in offline-only mode.
type unavailableDevice struct{}

func (unavailableDevice) Bind() error       { return ErrNoReader }
func (unavailableDevice) Card() (CardConn, error) { return nil, ErrNoCard }
func (unavailableDevice) Release()          {}

// UnavailableDevice returns a Device for terminals without reader hardware.
func UnavailableDevice() Device { return unavailableDevice{} }
