// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package avr

import (
	"fmt"
)

// OpKind names an ISP operation a part or memory region may define
// a command template for.
type OpKind uint8

const (
	OpPgmEnable OpKind = iota
	OpChipErase
	OpRead
	OpWrite
	OpReadLo
	OpReadHi
	OpWriteLo
	OpWriteHi
	OpLoadPageLo
	OpLoadPageHi
	OpWritePage
)

func (k OpKind) String() string {
	switch k {
	case OpPgmEnable:
		return "pgm-enable"
	case OpChipErase:
		return "chip-erase"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpReadLo:
		return "read-lo"
	case OpReadHi:
		return "read-hi"
	case OpWriteLo:
		return "write-lo"
	case OpWriteHi:
		return "write-hi"
	case OpLoadPageLo:
		return "loadpage-lo"
	case OpLoadPageHi:
		return "loadpage-hi"
	case OpWritePage:
		return "writepage"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

type bitKind uint8

const (
	bitIgnore bitKind = iota
	bitValue
	bitAddr
	bitInput
	bitOutput
)

type opBit struct {
	kind bitKind
	n    uint8 // value for bitValue, source bit number otherwise
}

// Op is a 4-byte ISP command template. Each of the 32 command bits
// is either a fixed value, an address bit, an input data bit, an
// output data bit or a don't-care. Bit 0 of the template is the MSB
// of the first command byte.
type Op struct {
	bits [32]opBit
}

// ParseOp parses a 32-symbol command template. Whitespace is
// ignored. Symbols:
//
//	0, 1  fixed command bit
//	a     address bit (MSB first)
//	i     input data bit (MSB first)
//	o     output data bit (MSB first)
//	x     don't care
func ParseOp(pattern string) (*Op, error) {
	var syms []byte
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case ' ', '\t':
			// separator
		default:
			syms = append(syms, c)
		}
	}
	if len(syms) != 32 {
		return nil, fmt.Errorf("avr: invalid op template %q: got %d bits, want 32", pattern, len(syms))
	}

	var na, ni, no int
	for _, c := range syms {
		switch c {
		case 'a':
			na++
		case 'i':
			ni++
		case 'o':
			no++
		}
	}

	op := new(Op)
	var sa, si, so int
	for i, c := range syms {
		switch c {
		case '0', '1':
			op.bits[i] = opBit{kind: bitValue, n: c - '0'}
		case 'x':
			op.bits[i] = opBit{kind: bitIgnore}
		case 'a':
			op.bits[i] = opBit{kind: bitAddr, n: uint8(na - 1 - sa)}
			sa++
		case 'i':
			op.bits[i] = opBit{kind: bitInput, n: uint8(ni - 1 - si)}
			si++
		case 'o':
			op.bits[i] = opBit{kind: bitOutput, n: uint8(no - 1 - so)}
			so++
		default:
			return nil, fmt.Errorf("avr: invalid op template %q: unknown symbol %q", pattern, string(c))
		}
	}
	return op, nil
}

func mustParseOp(pattern string) *Op {
	op, err := ParseOp(pattern)
	if err != nil {
		panic(err)
	}
	return op
}

// SetBits sets the fixed command bits of the template into cmd.
func (op *Op) SetBits(cmd *[4]byte) {
	for i, b := range op.bits {
		if b.kind == bitValue && b.n == 1 {
			cmd[i/8] |= 1 << uint(7-i%8)
		}
	}
}

// SetAddr sets the address bits of the template into cmd.
func (op *Op) SetAddr(cmd *[4]byte, addr uint32) {
	for i, b := range op.bits {
		if b.kind == bitAddr && (addr>>uint(b.n))&1 == 1 {
			cmd[i/8] |= 1 << uint(7-i%8)
		}
	}
}

// SetInput sets the input data bits of the template into cmd.
func (op *Op) SetInput(cmd *[4]byte, v byte) {
	for i, b := range op.bits {
		if b.kind == bitInput && (v>>uint(b.n))&1 == 1 {
			cmd[i/8] |= 1 << uint(7-i%8)
		}
	}
}

// GetOutput extracts the output data bits of the template from res.
func (op *Op) GetOutput(res *[4]byte) byte {
	var v byte
	for i, b := range op.bits {
		if b.kind == bitOutput && (res[i/8]>>uint(7-i%8))&1 == 1 {
			v |= 1 << uint(b.n)
		}
	}
	return v
}

// NumAddrBits returns the number of address bits of the template.
func (op *Op) NumAddrBits() int {
	var n int
	for _, b := range op.bits {
		if b.kind == bitAddr {
			n++
		}
	}
	return n
}
