// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package avr

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PartByName returns a fresh descriptor for the named part. Both
// full names ("ATmega328P") and short identifiers ("m328p") are
// recognized, case-insensitively. The returned descriptor carries
// freshly allocated memory buffers.
func PartByName(name string) (*Part, error) {
	for _, p := range parts {
		if strings.EqualFold(p.Name, name) || strings.EqualFold(p.ID, name) {
			return p.clone(), nil
		}
	}
	return nil, fmt.Errorf("avr: unknown part %q", name)
}

// PartNames returns the sorted list of known part names.
func PartNames() []string {
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

var parts = []*Part{
	{
		Name:           "ATtiny85",
		ID:             "t85",
		Signature:      [3]byte{0x1e, 0x93, 0x0b},
		ChipEraseDelay: 4500 * time.Microsecond,
		Ops: map[OpKind]*Op{
			OpPgmEnable: mustParseOp("1010 1100 0101 0011 xxxx xxxx xxxx xxxx"),
			OpChipErase: mustParseOp("1010 1100 100x xxxx xxxx xxxx xxxx xxxx"),
		},
		Mems: []*Mem{
			{
				Name:       "flash",
				Kind:       KindFlash,
				Size:       8192,
				Page:       64,
				Paged:      true,
				Readback:   [2]byte{0xff, 0xff},
				WriteDelay: 4500 * time.Microsecond,
				Ops: map[OpKind]*Op{
					OpReadLo:     mustParseOp("0010 0000 0000 aaaa aaaa aaaa oooo oooo"),
					OpReadHi:     mustParseOp("0010 1000 0000 aaaa aaaa aaaa oooo oooo"),
					OpLoadPageLo: mustParseOp("0100 0000 xxxx xxxx xxxa aaaa iiii iiii"),
					OpLoadPageHi: mustParseOp("0100 1000 xxxx xxxx xxxa aaaa iiii iiii"),
					OpWritePage:  mustParseOp("0100 1100 0000 aaaa aaaa aaaa xxxx xxxx"),
				},
			},
			{
				Name:       "eeprom",
				Kind:       KindEEPROM,
				Size:       512,
				Page:       4,
				Readback:   [2]byte{0xff, 0xff},
				WriteDelay: 4000 * time.Microsecond,
				Ops: map[OpKind]*Op{
					OpRead:  mustParseOp("1010 0000 000x xxxa aaaa aaaa oooo oooo"),
					OpWrite: mustParseOp("1100 0000 000x xxxa aaaa aaaa iiii iiii"),
				},
			},
			{
				Name: "signature",
				Kind: KindSignature,
				Size: 3,
				Ops: map[OpKind]*Op{
					OpRead: mustParseOp("0011 0000 00xx xxxx xxxx xxaa oooo oooo"),
				},
			},
		},
	},
	{
		Name:           "ATmega8",
		ID:             "m8",
		Signature:      [3]byte{0x1e, 0x93, 0x07},
		ChipEraseDelay: 10 * time.Millisecond,
		Ops: map[OpKind]*Op{
			OpPgmEnable: mustParseOp("1010 1100 0101 0011 xxxx xxxx xxxx xxxx"),
			OpChipErase: mustParseOp("1010 1100 100x xxxx xxxx xxxx xxxx xxxx"),
		},
		Mems: []*Mem{
			{
				Name:       "flash",
				Kind:       KindFlash,
				Size:       8192,
				Page:       64,
				Paged:      true,
				Readback:   [2]byte{0xff, 0xff},
				WriteDelay: 4500 * time.Microsecond,
				Ops: map[OpKind]*Op{
					OpReadLo:     mustParseOp("0010 0000 0000 aaaa aaaa aaaa oooo oooo"),
					OpReadHi:     mustParseOp("0010 1000 0000 aaaa aaaa aaaa oooo oooo"),
					OpLoadPageLo: mustParseOp("0100 0000 xxxx xxxx xxxa aaaa iiii iiii"),
					OpLoadPageHi: mustParseOp("0100 1000 xxxx xxxx xxxa aaaa iiii iiii"),
					OpWritePage:  mustParseOp("0100 1100 0000 aaaa aaaa aaaa xxxx xxxx"),
				},
			},
			{
				Name:       "eeprom",
				Kind:       KindEEPROM,
				Size:       512,
				Page:       4,
				Readback:   [2]byte{0xff, 0xff},
				WriteDelay: 9 * time.Millisecond,
				Ops: map[OpKind]*Op{
					OpRead:  mustParseOp("1010 0000 000x xxxa aaaa aaaa oooo oooo"),
					OpWrite: mustParseOp("1100 0000 000x xxxa aaaa aaaa iiii iiii"),
				},
			},
			{
				Name: "signature",
				Kind: KindSignature,
				Size: 3,
				Ops: map[OpKind]*Op{
					OpRead: mustParseOp("0011 0000 00xx xxxx xxxx xxaa oooo oooo"),
				},
			},
		},
	},
	{
		Name:           "ATmega328P",
		ID:             "m328p",
		Signature:      [3]byte{0x1e, 0x95, 0x0f},
		ChipEraseDelay: 9 * time.Millisecond,
		Ops: map[OpKind]*Op{
			OpPgmEnable: mustParseOp("1010 1100 0101 0011 xxxx xxxx xxxx xxxx"),
			OpChipErase: mustParseOp("1010 1100 100x xxxx xxxx xxxx xxxx xxxx"),
		},
		Mems: []*Mem{
			{
				Name:       "flash",
				Kind:       KindFlash,
				Size:       32768,
				Page:       128,
				Paged:      true,
				Readback:   [2]byte{0xff, 0xff},
				WriteDelay: 4500 * time.Microsecond,
				Ops: map[OpKind]*Op{
					OpReadLo:     mustParseOp("0010 0000 00aa aaaa aaaa aaaa oooo oooo"),
					OpReadHi:     mustParseOp("0010 1000 00aa aaaa aaaa aaaa oooo oooo"),
					OpLoadPageLo: mustParseOp("0100 0000 xxxx xxxx xxaa aaaa iiii iiii"),
					OpLoadPageHi: mustParseOp("0100 1000 xxxx xxxx xxaa aaaa iiii iiii"),
					OpWritePage:  mustParseOp("0100 1100 00aa aaaa aaaa aaaa xxxx xxxx"),
				},
			},
			{
				Name:       "eeprom",
				Kind:       KindEEPROM,
				Size:       1024,
				Page:       4,
				Readback:   [2]byte{0xff, 0xff},
				WriteDelay: 3600 * time.Microsecond,
				Ops: map[OpKind]*Op{
					OpRead:  mustParseOp("1010 0000 00xx xxaa aaaa aaaa oooo oooo"),
					OpWrite: mustParseOp("1100 0000 00xx xxaa aaaa aaaa iiii iiii"),
				},
			},
			{
				Name: "signature",
				Kind: KindSignature,
				Size: 3,
				Ops: map[OpKind]*Op{
					OpRead: mustParseOp("0011 0000 00xx xxxx xxxx xxaa oooo oooo"),
				},
			},
		},
	},
}
