// Package readertest provides a scripted in-memory reader for tests. It
// holds the three card data blocks and can be programmed to fail at any
// stage: no reader, no card, authentication refused, or write refused.
package readertest

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/creativerezz/cofk-lunch-card-app/internal/reader"
)

// Device implements reader.Device with a single simulated card.
type Device struct {
	mu sync.Mutex

	// Failure switches. Zero value is a healthy reader with a card present.
	NoReader  bool // Bind fails with ErrNoReader
	NoCard    bool // Card connections fail
	FailAuth  bool // authentication returns a non-OK status
	FailRead  bool // reads return a non-OK status
	FailWrite bool // writes return a non-OK status

	// UID presented by the simulated card, hex-encoded (e.g. "04AABBCC").
	UID string

	blocks map[byte][]byte
}

func New(uid string) *Device {
	return &Device{
		UID:    uid,
		blocks: make(map[byte][]byte),
	}
}

// SetBlock seeds raw block content, e.g. pre-encoded card data.
func (d *Device) SetBlock(block byte, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	d.blocks[block] = buf
}

// Block returns a copy of a block's current content.
func (d *Device) Block(block byte) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]byte, len(d.blocks[block]))
	copy(buf, d.blocks[block])
	return buf
}

func (d *Device) Bind() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NoReader {
		return reader.ErrNoReader
	}
	return nil
}

func (d *Device) Card() (reader.CardConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NoCard {
		return nil, reader.ErrNoCard
	}
	return &conn{dev: d}, nil
}

func (d *Device) Release() {}

type conn struct {
	dev *Device
}

func (c *conn) Close() {}

func (c *conn) Transmit(cmd []byte) ([]byte, byte, byte, error) {
	d := c.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case len(cmd) >= 2 && cmd[0] == 0xFF && cmd[1] == 0xCA: // get UID
		raw, err := hex.DecodeString(strings.ToLower(d.UID))
		if err != nil {
			return nil, 0x6A, 0x00, nil
		}
		return raw, 0x90, 0x00, nil

	case len(cmd) >= 2 && cmd[0] == 0xFF && cmd[1] == 0x86: // authenticate
		if d.FailAuth {
			return nil, 0x63, 0x00, nil
		}
		return nil, 0x90, 0x00, nil

	case len(cmd) >= 5 && cmd[0] == 0xFF && cmd[1] == 0xB0: // read block
		if d.FailRead {
			return nil, 0x63, 0x00, nil
		}
		block := cmd[3]
		data, ok := d.blocks[block]
		if !ok {
			data = make([]byte, 16)
		}
		out := make([]byte, 16)
		copy(out, data)
		return out, 0x90, 0x00, nil

	case len(cmd) >= 5 && cmd[0] == 0xFF && cmd[1] == 0xD6: // write block
		if d.FailWrite {
			return nil, 0x63, 0x00, nil
		}
		block := cmd[3]
		buf := make([]byte, 16)
		copy(buf, cmd[5:])
		d.blocks[block] = buf
		return nil, 0x90, 0x00, nil
	}

	return nil, 0x6D, 0x00, nil // instruction not supported
}
