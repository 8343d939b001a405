// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package avr describes AVR parts and their serial-programming
// instruction set: part and memory descriptors, the 4-byte ISP
// command templates, and the default single-byte read/write
// routines built on top of a raw command relay.
package avr // import "github.com/go-isp/usbtiny/avr"

import (
	"fmt"
	"strings"
	"time"
)

// MemKind describes the kind of a memory region of a part.
type MemKind uint8

const (
	KindOther MemKind = iota
	KindFlash
	KindEEPROM
	KindSignature
)

func (k MemKind) String() string {
	switch k {
	case KindFlash:
		return "flash"
	case KindEEPROM:
		return "eeprom"
	case KindSignature:
		return "signature"
	}
	return "other"
}

// Mem describes a memory region of a part, together with the ISP
// instructions that address it and a client-side buffer for paged
// transfers.
type Mem struct {
	Name  string
	Kind  MemKind
	Size  int
	Page  int  // page size in bytes
	Paged bool // page-organized write access

	Readback   [2]byte       // read-back values of a byte being written
	WriteDelay time.Duration // max write delay

	Ops map[OpKind]*Op
	Buf []byte
}

// WordAddressed reports whether the region is addressed by 16-bit
// words through lo/hi instruction pairs.
func (m *Mem) WordAddressed() bool {
	return m.Ops[OpReadLo] != nil || m.Ops[OpWriteLo] != nil
}

func (m *Mem) readOp(addr uint32) (*Op, uint32, error) {
	switch {
	case m.Ops[OpReadLo] != nil:
		kind := OpReadLo
		if addr&1 == 1 {
			kind = OpReadHi
		}
		op := m.Ops[kind]
		if op == nil {
			return nil, 0, fmt.Errorf("avr: operation %v not defined for %q", kind, m.Name)
		}
		return op, addr >> 1, nil
	case m.Ops[OpRead] != nil:
		return m.Ops[OpRead], addr, nil
	}
	return nil, 0, fmt.Errorf("avr: operation %v not defined for %q", OpRead, m.Name)
}

// writeOp returns the instruction writing a byte at addr, the
// adjusted address and whether a page commit must follow. Paged
// regions load the byte into the device page buffer through the
// loadpage-lo/hi pair; it only reaches non-volatile storage with the
// commit.
func (m *Mem) writeOp(addr uint32) (*Op, uint32, bool, error) {
	switch {
	case m.Paged && m.Ops[OpLoadPageLo] != nil:
		kind := OpLoadPageLo
		if addr&1 == 1 {
			kind = OpLoadPageHi
		}
		op := m.Ops[kind]
		if op == nil {
			return nil, 0, false, fmt.Errorf("avr: operation %v not defined for %q", kind, m.Name)
		}
		return op, addr >> 1, true, nil
	case m.Ops[OpWriteLo] != nil:
		kind := OpWriteLo
		if addr&1 == 1 {
			kind = OpWriteHi
		}
		op := m.Ops[kind]
		if op == nil {
			return nil, 0, false, fmt.Errorf("avr: operation %v not defined for %q", kind, m.Name)
		}
		return op, addr >> 1, false, nil
	case m.Ops[OpWrite] != nil:
		return m.Ops[OpWrite], addr, false, nil
	}
	return nil, 0, false, fmt.Errorf("avr: operation %v not defined for %q", OpWrite, m.Name)
}

// Part describes an AVR part: identification, erase timing and the
// part-level ISP instruction templates.
type Part struct {
	Name string
	ID   string // avrdude-style short identifier

	Signature      [3]byte
	ChipEraseDelay time.Duration

	Ops  map[OpKind]*Op
	Mems []*Mem
}

// Mem returns the memory region with the given name.
func (p *Part) Mem(name string) (*Mem, error) {
	for _, m := range p.Mems {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("avr: part %q has no memory %q", p.Name, name)
}

func (p *Part) clone() *Part {
	q := *p
	q.Mems = make([]*Mem, len(p.Mems))
	for i, m := range p.Mems {
		mm := *m
		mm.Buf = make([]byte, m.Size)
		q.Mems[i] = &mm
	}
	return &q
}

// Commander issues raw 4-byte ISP commands to the target and
// collects the 4-byte response.
type Commander interface {
	Cmd(cmd, res *[4]byte) error
}

// Programmer is the capability surface a part-programming driver
// provides to its host.
type Programmer interface {
	Initialize(p *Part) error
	Close() error
	PowerDown() error
	ChipErase(p *Part) error
	Cmd(cmd, res *[4]byte) error
	PagedLoad(p *Part, m *Mem, n int) (int, error)
	PagedWrite(p *Part, m *Mem, n int) (int, error)
	ReadByte(p *Part, m *Mem, addr uint32) (byte, error)
	WriteByte(p *Part, m *Mem, addr uint32, v byte) error
	SetSCKPeriod(d time.Duration) error
}
