// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package avr

import (
	"fmt"
	"io"
	"testing"
	"time"
)

type fakeCmd struct {
	cmds [][4]byte
	res  func(cmd [4]byte) [4]byte
	err  error
}

func (f *fakeCmd) Cmd(cmd, res *[4]byte) error {
	f.cmds = append(f.cmds, *cmd)
	if f.err != nil {
		return f.err
	}
	if f.res != nil {
		*res = f.res(*cmd)
	}
	return nil
}

func TestReadByteDefault(t *testing.T) {
	p, err := PartByName("m328p")
	if err != nil {
		t.Fatalf("could not find part: %+v", err)
	}

	for _, tc := range []struct {
		name string
		mem  string
		addr uint32
		cmd  [4]byte
	}{
		{
			name: "flash-even",
			mem:  "flash",
			addr: 0x0010,
			cmd:  [4]byte{0x20, 0x00, 0x08, 0x00},
		},
		{
			name: "flash-odd",
			mem:  "flash",
			addr: 0x0011,
			cmd:  [4]byte{0x28, 0x00, 0x08, 0x00},
		},
		{
			name: "eeprom",
			mem:  "eeprom",
			addr: 0x0123,
			cmd:  [4]byte{0xa0, 0x01, 0x23, 0x00},
		},
		{
			name: "signature",
			mem:  "signature",
			addr: 2,
			cmd:  [4]byte{0x30, 0x00, 0x02, 0x00},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := p.Mem(tc.mem)
			if err != nil {
				t.Fatalf("could not find memory: %+v", err)
			}

			relay := &fakeCmd{
				res: func(cmd [4]byte) [4]byte {
					return [4]byte{0, cmd[0], cmd[1], 0x42}
				},
			}
			v, err := ReadByteDefault(relay, p, m, tc.addr)
			if err != nil {
				t.Fatalf("could not read byte: %+v", err)
			}
			if got, want := v, byte(0x42); got != want {
				t.Fatalf("invalid byte: got=0x%02x, want=0x%02x", got, want)
			}
			if got, want := len(relay.cmds), 1; got != want {
				t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
			}
			if got, want := relay.cmds[0], tc.cmd; got != want {
				t.Fatalf("invalid command: got=% x, want=% x", got, want)
			}
		})
	}
}

func TestReadByteDefaultErr(t *testing.T) {
	p, err := PartByName("t85")
	if err != nil {
		t.Fatalf("could not find part: %+v", err)
	}
	m, err := p.Mem("eeprom")
	if err != nil {
		t.Fatalf("could not find memory: %+v", err)
	}

	relay := &fakeCmd{err: io.ErrUnexpectedEOF}
	_, err = ReadByteDefault(relay, p, m, 0)
	if err == nil {
		t.Fatalf("expected an error")
	}
	want := `avr: could not read byte at 0x0000 from "eeprom" of part "ATtiny85": unexpected EOF`
	if got := err.Error(); got != want {
		t.Fatalf("invalid error:\ngot= %s\nwant=%s", got, want)
	}
}

// fakeProg is a minimal programmer around a fakeCmd relay whose
// ReadByte returns scripted values.
type fakeProg struct {
	relay *fakeCmd
	reads []byte
	nread int
}

func (f *fakeProg) Initialize(p *Part) error                      { return nil }
func (f *fakeProg) Close() error                                  { return nil }
func (f *fakeProg) PowerDown() error                              { return nil }
func (f *fakeProg) ChipErase(p *Part) error                       { return nil }
func (f *fakeProg) Cmd(cmd, res *[4]byte) error                   { return f.relay.Cmd(cmd, res) }
func (f *fakeProg) PagedLoad(p *Part, m *Mem, n int) (int, error) { return 0, nil }
func (f *fakeProg) PagedWrite(p *Part, m *Mem, n int) (int, error) {
	return 0, nil
}
func (f *fakeProg) WriteByte(p *Part, m *Mem, addr uint32, v byte) error { return nil }
func (f *fakeProg) SetSCKPeriod(d time.Duration) error                   { return nil }

func (f *fakeProg) ReadByte(p *Part, m *Mem, addr uint32) (byte, error) {
	if f.nread >= len(f.reads) {
		return 0, fmt.Errorf("unexpected read #%d", f.nread)
	}
	v := f.reads[f.nread]
	f.nread++
	return v, nil
}

var _ Programmer = (*fakeProg)(nil)

func TestWriteByteDefault(t *testing.T) {
	p, err := PartByName("m328p")
	if err != nil {
		t.Fatalf("could not find part: %+v", err)
	}
	m, err := p.Mem("eeprom")
	if err != nil {
		t.Fatalf("could not find memory: %+v", err)
	}
	m.WriteDelay = 200 * time.Microsecond

	t.Run("polled", func(t *testing.T) {
		prog := &fakeProg{
			relay: new(fakeCmd),
			reads: []byte{0xff, 0xff, 0x42}, // write cycle in progress, then done
		}
		err := WriteByteDefault(prog, p, m, 0x0123, 0x42)
		if err != nil {
			t.Fatalf("could not write byte: %+v", err)
		}
		if got, want := prog.relay.cmds, [][4]byte{{0xc0, 0x01, 0x23, 0x42}}; len(got) != 1 || got[0] != want[0] {
			t.Fatalf("invalid commands: got=% x, want=% x", got, want)
		}
		if got, want := prog.nread, 3; got != want {
			t.Fatalf("invalid number of poll reads: got=%d, want=%d", got, want)
		}
	})

	t.Run("blind-value", func(t *testing.T) {
		// 0xff matches the read-back pattern: completion can not be
		// polled and the write delay is honored instead.
		prog := &fakeProg{relay: new(fakeCmd)}
		err := WriteByteDefault(prog, p, m, 0x0004, 0xff)
		if err != nil {
			t.Fatalf("could not write byte: %+v", err)
		}
		if got, want := prog.nread, 0; got != want {
			t.Fatalf("invalid number of poll reads: got=%d, want=%d", got, want)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		prog := &fakeProg{
			relay: new(fakeCmd),
			reads: make([]byte, 1024), // always 0x00, never the written value
		}
		err := WriteByteDefault(prog, p, m, 0x0123, 0x42)
		if err == nil {
			t.Fatalf("expected an error")
		}
	})

	t.Run("relay-error", func(t *testing.T) {
		prog := &fakeProg{relay: &fakeCmd{err: io.ErrUnexpectedEOF}}
		err := WriteByteDefault(prog, p, m, 0x0123, 0x42)
		if err == nil {
			t.Fatalf("expected an error")
		}
	})

	// paged flash: the byte goes through the device page buffer and
	// the enclosing page is committed right away.
	t85, err := PartByName("t85")
	if err != nil {
		t.Fatalf("could not find part: %+v", err)
	}
	flash, err := t85.Mem("flash")
	if err != nil {
		t.Fatalf("could not find memory: %+v", err)
	}
	flash.WriteDelay = 100 * time.Microsecond

	t.Run("flash-even", func(t *testing.T) {
		prog := &fakeProg{
			relay: new(fakeCmd),
			reads: []byte{0xff, 0x42},
		}
		err := WriteByteDefault(prog, t85, flash, 0x0000, 0x42)
		if err != nil {
			t.Fatalf("could not write byte: %+v", err)
		}
		want := [][4]byte{
			{0x40, 0x00, 0x00, 0x42}, // loadpage lo, word 0
			{0x4c, 0x00, 0x00, 0x00}, // writepage commit
		}
		if got := prog.relay.cmds; len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("invalid commands:\ngot= % x\nwant=% x", got, want)
		}
		if got, want := prog.nread, 2; got != want {
			t.Fatalf("invalid number of poll reads: got=%d, want=%d", got, want)
		}
	})

	t.Run("flash-odd", func(t *testing.T) {
		prog := &fakeProg{
			relay: new(fakeCmd),
			reads: []byte{0xff, 0x42},
		}
		err := WriteByteDefault(prog, t85, flash, 0x0003, 0x42)
		if err != nil {
			t.Fatalf("could not write byte: %+v", err)
		}
		want := [][4]byte{
			{0x48, 0x00, 0x01, 0x42}, // loadpage hi, word 1
			{0x4c, 0x00, 0x01, 0x00}, // writepage commit
		}
		if got := prog.relay.cmds; len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("invalid commands:\ngot= % x\nwant=% x", got, want)
		}
	})

	t.Run("flash-blind-value", func(t *testing.T) {
		// 0xff is not pollable; the commit delay already covers the
		// write cycle.
		prog := &fakeProg{relay: new(fakeCmd)}
		err := WriteByteDefault(prog, t85, flash, 0x0000, 0xff)
		if err != nil {
			t.Fatalf("could not write byte: %+v", err)
		}
		if got, want := len(prog.relay.cmds), 2; got != want {
			t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
		}
		if got, want := prog.nread, 0; got != want {
			t.Fatalf("invalid number of poll reads: got=%d, want=%d", got, want)
		}
	})
}

func TestWritePage(t *testing.T) {
	p, err := PartByName("m328p")
	if err != nil {
		t.Fatalf("could not find part: %+v", err)
	}
	m, err := p.Mem("flash")
	if err != nil {
		t.Fatalf("could not find memory: %+v", err)
	}
	m.WriteDelay = 100 * time.Microsecond

	relay := new(fakeCmd)
	err = WritePage(relay, p, m, 0x100) // byte address, word 0x80
	if err != nil {
		t.Fatalf("could not write page: %+v", err)
	}
	if got, want := len(relay.cmds), 1; got != want {
		t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
	}
	if got, want := relay.cmds[0], ([4]byte{0x4c, 0x00, 0x80, 0x00}); got != want {
		t.Fatalf("invalid command: got=% x, want=% x", got, want)
	}

	sig, err := p.Mem("signature")
	if err != nil {
		t.Fatalf("could not find memory: %+v", err)
	}
	err = WritePage(relay, p, sig, 0)
	if err == nil {
		t.Fatalf("expected an error for a region without a writepage operation")
	}
}
