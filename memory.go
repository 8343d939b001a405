// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbtiny

import (
	"fmt"
	"time"

	"github.com/go-isp/usbtiny/avr"
)

func memReqs(m *avr.Mem) (rd, wr uint8, err error) {
	switch m.Kind {
	case avr.KindFlash:
		return reqFlashRead, reqFlashWrite, nil
	case avr.KindEEPROM:
		return reqEEPROMRead, reqEEPROMWrite, nil
	}
	return 0, 0, fmt.Errorf("usbtiny: no paged access to %v memory %q", m.Kind, m.Name)
}

// PagedLoad reads the first n bytes of a flash or eeprom region
// into the region's buffer, one chunk per exchange. It returns the
// number of bytes read.
func (prog *Programmer) PagedLoad(p *avr.Part, m *avr.Mem, n int) (int, error) {
	req, _, err := memReqs(m)
	if err != nil {
		return 0, err
	}
	if n > len(m.Buf) {
		return 0, fmt.Errorf("usbtiny: read of %d bytes overflows %q buffer (%d bytes)",
			n, m.Name, len(m.Buf),
		)
	}

	for i := 0; i < n; {
		chunk := prog.chunk
		if chunk > n-i {
			chunk = n - i
		}
		err := prog.usbIn(req, 0, uint16(i), m.Buf[i:i+chunk], 32*prog.sck)
		if err != nil {
			return i, fmt.Errorf("usbtiny: could not read %q at 0x%04x: %w", m.Name, i, err)
		}
		i += chunk
		prog.reportProgress(i, n)
	}
	return n, nil
}

// PagedWrite writes the first n bytes of the region's buffer to a
// flash or eeprom region. Page-organized regions are committed at
// every page boundary (and at the end of the transfer); for other
// regions the adapter is told the read-back poll pattern and the
// write delay once, and each chunk write is self-contained. It
// returns the number of bytes written.
func (prog *Programmer) PagedWrite(p *avr.Part, m *avr.Mem, n int) (int, error) {
	_, req, err := memReqs(m)
	if err != nil {
		return 0, err
	}
	if n > len(m.Buf) {
		return 0, fmt.Errorf("usbtiny: write of %d bytes overflows %q buffer (%d bytes)",
			n, m.Name, len(m.Buf),
		)
	}

	var delay int // per-write delay, µs
	if !m.Paged {
		pattern := uint16(m.Readback[1])<<8 | uint16(m.Readback[0])
		err := prog.control(reqPollBytes, pattern, 0)
		if err != nil {
			return 0, fmt.Errorf("usbtiny: could not set poll bytes: %w", err)
		}
		delay = int(m.WriteDelay / time.Microsecond)
	}

	for i := 0; i < n; {
		chunk := prog.chunk
		if m.Paged && chunk > m.Page {
			// never straddle a page commit mid-chunk
			chunk = m.Page
		}
		if chunk > n-i {
			chunk = n - i
		}

		err := prog.usbOut(req, uint16(delay), uint16(i), m.Buf[i:i+chunk], 32*prog.sck+delay)
		if err != nil {
			return i, fmt.Errorf("usbtiny: could not write %q at 0x%04x: %w", m.Name, i, err)
		}

		next := i + chunk
		if m.Paged && (next%m.Page == 0 || next == n) {
			err := avr.WritePage(prog, p, m, uint32(i))
			if err != nil {
				return i, err
			}
		}
		prog.reportProgress(next, n)
		i = next
	}
	return n, nil
}
