// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbtiny

import (
	"fmt"

	"github.com/go-isp/usbtiny/avr"
)

func cacheable(m *avr.Mem) bool {
	return m.Kind == avr.KindFlash || m.Kind == avr.KindEEPROM
}

// ReadByte reads a single byte from a memory region. Flash and
// eeprom reads are served from a one-chunk cache, refilled from the
// adapter on a miss. Other regions, and reads issued while the
// cache is disabled, go through the part's default read path.
func (prog *Programmer) ReadByte(p *avr.Part, m *avr.Mem, addr uint32) (byte, error) {
	if prog.cache.disable > 0 || !cacheable(m) {
		return avr.ReadByteDefault(prog, p, m, addr)
	}

	base := addr &^ uint32(prog.chunk-1)
	if prog.cache.mem != m || prog.cache.base != base {
		req, _, err := memReqs(m)
		if err != nil {
			return 0, err
		}
		size := prog.chunk
		if m.Size < size {
			size = m.Size
		}
		err = prog.usbIn(req, 0, uint16(base), prog.cache.buf[:size], 32*prog.sck)
		if err != nil {
			prog.cache.mem = nil
			return 0, fmt.Errorf("usbtiny: could not fill read cache for %q at 0x%04x: %w",
				m.Name, base, err,
			)
		}
		prog.cache.mem = m
		prog.cache.base = base
	}
	return prog.cache.buf[addr-prog.cache.base], nil
}

// WriteByte writes a single byte through the part's default
// verified write path. The cache is bypassed for the duration: the
// write path polls the device through the same addresses, and must
// observe the device, not a stale window.
func (prog *Programmer) WriteByte(p *avr.Part, m *avr.Mem, addr uint32, v byte) error {
	prog.cache.disable++
	defer func() { prog.cache.disable-- }()
	return avr.WriteByteDefault(prog, p, m, addr, v)
}
