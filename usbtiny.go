// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package usbtiny provides a driver for the USBtinyISP AVR
// programmer. The adapter executes the electrical serial-programming
// protocol against the target chip; this driver speaks the adapter's
// control-channel command set and manages transfer sizing, timeouts
// and a small read cache.
package usbtiny // import "github.com/go-isp/usbtiny"

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-daq/tdaq/log"

	"github.com/go-isp/usbtiny/avr"
)

// Request codes understood by the USBtinyISP firmware.
// The numbering must match the firmware: do not reorder.
const (
	reqEcho        uint8 = iota // echo test
	reqReadByte                 // read byte (idx:address)
	reqWriteByte                // write byte (idx:address, val:value)
	reqClearBit                 // clear bit (idx:address, val:bitno)
	reqSetBit                   // set bit (idx:address, val:bitno)
	reqPowerUp                  // apply power (val:SCK-period, idx:RESET)
	reqPowerDown                // remove power from chip
	reqSPI                      // issue SPI command (val:c1c0, idx:c3c2)
	reqPollBytes                // set poll bytes for write (val:p1p2)
	reqFlashRead                // read flash (idx:address)
	reqFlashWrite               // write flash (idx:address, val:delay)
	reqEEPROMRead               // read eeprom (idx:address)
	reqEEPROMWrite              // write eeprom (idx:address, val:delay)
)

const (
	resetLow  uint16 = 0
	resetHigh uint16 = 1

	sckMin     = 1   // µs (target clock >= 4 MHz)
	sckMax     = 250 // µs (target clock >= 16 kHz)
	sckDefault = 10  // µs (target clock >= 0.4 MHz)

	chunkMax = 128 // must be a power of two less than 256

	usbTimeout = 500 * time.Millisecond
)

// Programmer drives a USBtinyISP adapter over its control channel.
// It implements avr.Programmer. A Programmer is a single programming
// session: it is not safe for concurrent use and the protocol is
// strictly half-duplex.
type Programmer struct {
	msg log.MsgStream
	ch  Channel
	cfg config

	sck   int // SCK period (µs), within [sckMin, sckMax]
	chunk int // transfer chunk size, power of two <= chunkMax

	cache struct {
		mem     *avr.Mem // cached region; nil when the cache is invalid
		base    uint32   // chunk-aligned base address of the cached window
		buf     [chunkMax]byte
		disable int // bypass the cache while > 0
	}
}

var _ avr.Programmer = (*Programmer)(nil)

// New creates a driver speaking to the adapter over ch.
func New(ch Channel, opts ...Option) *Programmer {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.msg == nil {
		cfg.msg = log.NewMsgStream("usbtiny", cfg.lvl, os.Stdout)
	}

	return &Programmer{
		msg:   cfg.msg,
		ch:    ch,
		cfg:   cfg,
		sck:   sckDefault,
		chunk: chunkMax,
	}
}

// Open locates the USBtiny adapter on the USB bus and returns a
// driver for it.
func Open(opts ...Option) (*Programmer, error) {
	ch, err := usbOpen()
	if err != nil {
		return nil, fmt.Errorf("usbtiny: could not open adapter: %w", err)
	}
	return New(ch, opts...), nil
}

// Close releases the control channel. Close is safe to call on an
// already-closed Programmer.
func (prog *Programmer) Close() error {
	if prog.ch == nil {
		return nil
	}
	var err error
	if c, ok := prog.ch.(io.Closer); ok {
		err = c.Close()
	}
	prog.ch = nil
	return err
}

// Initialize powers up the target and enables programming mode.
// When enabling fails, the target's RESET line is toggled and the
// enable command retried once.
func (prog *Programmer) Initialize(p *avr.Part) error {
	if prog.cfg.bitclock > 0 {
		err := prog.SetSCKPeriod(prog.cfg.bitclock)
		if err != nil {
			return err
		}
	} else {
		prog.sck = sckDefault
		prog.msg.Debugf("using SCK period of %d µs", prog.sck)
		err := prog.control(reqPowerUp, uint16(prog.sck), resetLow)
		if err != nil {
			return fmt.Errorf("usbtiny: could not power up target: %w", err)
		}
		prog.setChunkSize(prog.sck)
	}
	time.Sleep(50 * time.Millisecond)

	var res [4]byte
	err := prog.issueOp(p, avr.OpPgmEnable, &res)
	if err != nil {
		// no response: toggle RESET and try again
		err = prog.control(reqPowerUp, uint16(prog.sck), resetHigh)
		if err != nil {
			return fmt.Errorf("usbtiny: could not toggle RESET: %w", err)
		}
		err = prog.control(reqPowerUp, uint16(prog.sck), resetLow)
		if err != nil {
			return fmt.Errorf("usbtiny: could not toggle RESET: %w", err)
		}
		time.Sleep(20 * time.Millisecond)
		err = prog.issueOp(p, avr.OpPgmEnable, &res)
		if err != nil {
			return fmt.Errorf("usbtiny: could not enable programming mode for %q: %w",
				p.Name, err,
			)
		}
	}
	return nil
}

// PowerDown removes power from the target.
func (prog *Programmer) PowerDown() error {
	if prog.ch == nil {
		return nil
	}
	err := prog.control(reqPowerDown, 0, 0)
	if err != nil {
		return fmt.Errorf("usbtiny: could not power down target: %w", err)
	}
	return nil
}

// ChipErase erases the whole chip. The target leaves programming
// mode during the erase, so it is re-initialized afterwards
// regardless of the erase status.
func (prog *Programmer) ChipErase(p *avr.Part) error {
	var res [4]byte
	eraseErr := prog.issueOp(p, avr.OpChipErase, &res)
	time.Sleep(p.ChipEraseDelay)

	err := prog.control(reqPowerUp, uint16(prog.sck), resetHigh)
	if err != nil {
		return fmt.Errorf("usbtiny: could not toggle RESET: %w", err)
	}
	err = prog.Initialize(p)
	if err != nil {
		return fmt.Errorf("usbtiny: could not re-initialize after chip erase: %w", err)
	}

	if eraseErr != nil {
		return fmt.Errorf("usbtiny: could not erase chip: %w", eraseErr)
	}
	return nil
}
