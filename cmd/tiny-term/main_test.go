// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/go-isp/usbtiny/avr"
)

// fakeProg is an in-memory device for shell tests.
type fakeProg struct {
	dev map[string][]byte
	sig [3]byte

	erased bool
	sck    time.Duration
}

func newFakeProg(p *avr.Part) *fakeProg {
	f := &fakeProg{
		dev: make(map[string][]byte),
		sig: p.Signature,
	}
	for _, m := range p.Mems {
		buf := make([]byte, m.Size)
		for i := range buf {
			buf[i] = 0xff
		}
		f.dev[m.Name] = buf
	}
	return f
}

func (f *fakeProg) Initialize(p *avr.Part) error { return nil }
func (f *fakeProg) Close() error                 { return nil }
func (f *fakeProg) PowerDown() error             { return nil }
func (f *fakeProg) Cmd(cmd, res *[4]byte) error  { return nil }

func (f *fakeProg) ChipErase(p *avr.Part) error {
	f.erased = true
	return nil
}

func (f *fakeProg) PagedLoad(p *avr.Part, m *avr.Mem, n int) (int, error) {
	copy(m.Buf[:n], f.dev[m.Name])
	return n, nil
}

func (f *fakeProg) PagedWrite(p *avr.Part, m *avr.Mem, n int) (int, error) {
	copy(f.dev[m.Name], m.Buf[:n])
	return n, nil
}

func (f *fakeProg) ReadByte(p *avr.Part, m *avr.Mem, addr uint32) (byte, error) {
	if m.Kind == avr.KindSignature {
		return f.sig[addr], nil
	}
	return f.dev[m.Name][addr], nil
}

func (f *fakeProg) WriteByte(p *avr.Part, m *avr.Mem, addr uint32, v byte) error {
	f.dev[m.Name][addr] = v
	return nil
}

func (f *fakeProg) SetSCKPeriod(d time.Duration) error {
	f.sck = d
	return nil
}

var _ avr.Programmer = (*fakeProg)(nil)

func newTestShell(t *testing.T, part string) (*shell, *fakeProg) {
	t.Helper()
	p, err := avr.PartByName(part)
	if err != nil {
		t.Fatalf("could not find part: %+v", err)
	}
	prog := newFakeProg(p)
	return &shell{prog: prog, part: p}, prog
}

func TestShellSig(t *testing.T) {
	sh, _ := newTestShell(t, "t85")
	out := new(bytes.Buffer)
	quit, err := sh.run(out, "sig")
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if quit {
		t.Fatalf("unexpected quit")
	}
	if got, want := out.String(), "signature: 0x1e930b (ATtiny85)\n"; got != want {
		t.Fatalf("invalid output:\ngot= %q\nwant=%q", got, want)
	}
}

func TestShellSigUnknown(t *testing.T) {
	sh, prog := newTestShell(t, "t85")
	prog.sig = [3]byte{0x1e, 0x95, 0x0f}
	out := new(bytes.Buffer)
	if _, err := sh.run(out, "sig"); err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if got, want := out.String(), "signature: 0x1e950f (unknown device)\n"; got != want {
		t.Fatalf("invalid output:\ngot= %q\nwant=%q", got, want)
	}
}

func TestShellDump(t *testing.T) {
	sh, prog := newTestShell(t, "t85")
	for i := 0; i < 64; i++ {
		prog.dev["eeprom"][i] = byte(i)
	}

	out := new(bytes.Buffer)
	_, err := sh.run(out, "dump eeprom 0x10 20")
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	want := "" +
		"00000010  10 11 12 13 14 15 16 17 18 19 1a 1b 1c 1d 1e 1f\n" +
		"00000020  20 21 22 23\n"
	if got := out.String(); got != want {
		t.Fatalf("invalid output:\ngot:\n%swant:\n%s", got, want)
	}
}

func TestShellDumpErr(t *testing.T) {
	sh, _ := newTestShell(t, "t85")
	out := new(bytes.Buffer)
	for _, line := range []string{
		"dump",
		"dump eeprom",
		"dump bogus 0 1",
		"dump eeprom zz 1",
		"dump eeprom 0 zz",
		"dump eeprom 510 4",
	} {
		if _, err := sh.run(out, line); err == nil {
			t.Fatalf("%q: expected an error", line)
		}
	}
}

func TestShellWrite(t *testing.T) {
	sh, prog := newTestShell(t, "t85")
	out := new(bytes.Buffer)
	_, err := sh.run(out, "write eeprom 0x10 0xca 0xfe 3")
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	want := []byte{0xca, 0xfe, 0x03}
	if got := prog.dev["eeprom"][0x10:0x13]; !bytes.Equal(got, want) {
		t.Fatalf("invalid content: got=% x, want=% x", got, want)
	}
}

func TestShellWriteErr(t *testing.T) {
	sh, _ := newTestShell(t, "t85")
	out := new(bytes.Buffer)
	for _, line := range []string{
		"write",
		"write eeprom 0",
		"write bogus 0 1",
		"write eeprom zz 1",
		"write eeprom 0 256",
		"write eeprom 0 zz",
	} {
		if _, err := sh.run(out, line); err == nil {
			t.Fatalf("%q: expected an error", line)
		}
	}
}

func TestShellErase(t *testing.T) {
	sh, prog := newTestShell(t, "t85")
	out := new(bytes.Buffer)
	if _, err := sh.run(out, "erase"); err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if !prog.erased {
		t.Fatalf("chip not erased")
	}
}

func TestShellSCK(t *testing.T) {
	sh, prog := newTestShell(t, "t85")
	out := new(bytes.Buffer)
	if _, err := sh.run(out, "sck 250us"); err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if got, want := prog.sck, 250*time.Microsecond; got != want {
		t.Fatalf("invalid period: got=%v, want=%v", got, want)
	}
	if _, err := sh.run(out, "sck fast"); err == nil {
		t.Fatalf("expected an error")
	}
	if _, err := sh.run(out, "sck"); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestShellMisc(t *testing.T) {
	sh, _ := newTestShell(t, "t85")
	out := new(bytes.Buffer)

	quit, err := sh.run(out, "quit")
	if err != nil || !quit {
		t.Fatalf("invalid quit: quit=%v err=%+v", quit, err)
	}
	quit, err = sh.run(out, "exit")
	if err != nil || !quit {
		t.Fatalf("invalid exit: quit=%v err=%+v", quit, err)
	}

	if _, err := sh.run(out, "bogus"); err == nil {
		t.Fatalf("expected an error")
	}

	out.Reset()
	if _, err := sh.run(out, "parts"); err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if !strings.Contains(out.String(), "ATtiny85") {
		t.Fatalf("invalid parts output: %q", out.String())
	}

	out.Reset()
	if _, err := sh.run(out, "help"); err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if !strings.Contains(out.String(), "erase") {
		t.Fatalf("invalid help output: %q", out.String())
	}
}
