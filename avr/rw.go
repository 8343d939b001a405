// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package avr

import (
	"fmt"
	"time"
)

// ReadByteDefault reads a single byte from a memory region by
// issuing the region's read instruction through the raw command
// relay. Flash-like regions addressed by lo/hi instruction pairs
// select the instruction by address parity.
func ReadByteDefault(c Commander, p *Part, m *Mem, addr uint32) (byte, error) {
	op, a, err := m.readOp(addr)
	if err != nil {
		return 0, fmt.Errorf("avr: could not read byte at 0x%04x from %q of part %q: %w",
			addr, m.Name, p.Name, err,
		)
	}

	var cmd, res [4]byte
	op.SetBits(&cmd)
	op.SetAddr(&cmd, a)
	err = c.Cmd(&cmd, &res)
	if err != nil {
		return 0, fmt.Errorf("avr: could not read byte at 0x%04x from %q of part %q: %w",
			addr, m.Name, p.Name, err,
		)
	}
	return op.GetOutput(&res), nil
}

// WriteByteDefault writes a single byte to a memory region through
// the raw command relay and waits for the internal write cycle to
// complete. Paged regions load the byte into the device page buffer
// and commit the enclosing page. When the written value is
// distinguishable from the region's read-back pattern, completion is
// detected by polling the programmer's ReadByte until it returns the
// value; otherwise the region's max write delay is honored.
func WriteByteDefault(prog Programmer, p *Part, m *Mem, addr uint32, v byte) error {
	op, a, commit, err := m.writeOp(addr)
	if err != nil {
		return fmt.Errorf("avr: could not write byte 0x%02x at 0x%04x to %q of part %q: %w",
			v, addr, m.Name, p.Name, err,
		)
	}

	var cmd, res [4]byte
	op.SetBits(&cmd)
	op.SetAddr(&cmd, a)
	op.SetInput(&cmd, v)
	err = prog.Cmd(&cmd, &res)
	if err != nil {
		return fmt.Errorf("avr: could not write byte 0x%02x at 0x%04x to %q of part %q: %w",
			v, addr, m.Name, p.Name, err,
		)
	}

	if commit {
		// WritePage honors the write delay
		err := WritePage(prog, p, m, addr)
		if err != nil {
			return fmt.Errorf("avr: could not write byte 0x%02x at 0x%04x to %q of part %q: %w",
				v, addr, m.Name, p.Name, err,
			)
		}
	}

	if !m.pollable(v) {
		if !commit {
			time.Sleep(m.WriteDelay)
		}
		return nil
	}

	interval := m.WriteDelay / 4
	if interval < 50*time.Microsecond {
		interval = 50 * time.Microsecond
	}
	deadline := time.Now().Add(10 * m.WriteDelay)
	for {
		r, err := prog.ReadByte(p, m, addr)
		if err == nil && r == v {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("avr: write of 0x%02x at 0x%04x to %q of part %q did not complete (last read 0x%02x)",
				v, addr, m.Name, p.Name, r,
			)
		}
		time.Sleep(interval)
	}
}

// pollable reports whether a write of v can be detected by reading
// the location back: the region must define a read instruction and
// v must differ from both read-back values returned while the write
// cycle is in progress.
func (m *Mem) pollable(v byte) bool {
	if m.Readback[0]|m.Readback[1] == 0 {
		return false
	}
	if m.Ops[OpReadLo] == nil && m.Ops[OpRead] == nil {
		return false
	}
	return v != m.Readback[0] && v != m.Readback[1]
}

// WritePage commits the currently loaded page buffer of a
// page-organized region to non-volatile storage. addr is a byte
// address inside the page to commit.
func WritePage(c Commander, p *Part, m *Mem, addr uint32) error {
	op := m.Ops[OpWritePage]
	if op == nil {
		return fmt.Errorf("avr: operation %v not defined for %q of part %q",
			OpWritePage, m.Name, p.Name,
		)
	}

	a := addr
	if m.WordAddressed() {
		a >>= 1
	}

	var cmd, res [4]byte
	op.SetBits(&cmd)
	op.SetAddr(&cmd, a)
	err := c.Cmd(&cmd, &res)
	if err != nil {
		return fmt.Errorf("avr: could not commit %q page at 0x%04x of part %q: %w",
			m.Name, addr, p.Name, err,
		)
	}
	time.Sleep(m.WriteDelay)
	return nil
}
