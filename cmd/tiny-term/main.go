// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tiny-term is an interactive shell for poking at an AVR chip
// through a USBtinyISP programmer.
//
// Usage: tiny-term [OPTIONS] -p PART
//
// Example:
//
//	$> tiny-term -p t85
//	tiny> sig
//	signature: 0x1e930b (ATtiny85)
//	tiny> dump flash 0 32
//	00000000  0e c0 15 c0 14 c0 14 c0 14 c0 14 c0 14 c0 14 c0
//	00000010  14 c0 14 c0 14 c0 11 24 1f be cf e5 d2 e0 de bf
//	tiny> write eeprom 0x10 0xca 0xfe
//	tiny> quit
package main

import (
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/go-isp/usbtiny"
	"github.com/go-isp/usbtiny/avr"
)

func main() {
	os.Exit(xmain())
}

func xmain() int {
	stdlog.SetPrefix("tiny-term: ")
	stdlog.SetFlags(0)

	var (
		part     = flag.String("p", "", "AVR part to talk to (e.g. t85, m328p)")
		bitclock = flag.Duration("B", 0, "SCK clock period (e.g. 250us)")
	)

	flag.Usage = func() {
		fmt.Printf(`tiny-term is an interactive shell for poking at an AVR chip
through a USBtinyISP programmer.

Usage: tiny-term [OPTIONS] -p PART

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if *part == "" {
		flag.Usage()
		stdlog.Printf("missing part name (-p); known parts: %s",
			strings.Join(avr.PartNames(), ", "),
		)
		return 1
	}

	p, err := avr.PartByName(*part)
	if err != nil {
		stdlog.Printf("%+v", err)
		return 1
	}

	var opts []usbtiny.Option
	if *bitclock > 0 {
		opts = append(opts, usbtiny.WithSCKPeriod(*bitclock))
	}

	prog, err := usbtiny.Open(opts...)
	if err != nil {
		stdlog.Printf("%+v", err)
		return 1
	}
	defer prog.Close()
	defer prog.PowerDown()

	if err := prog.Initialize(p); err != nil {
		stdlog.Printf("could not initialize %s: %+v", p.Name, err)
		return 1
	}

	sh := &shell{prog: prog, part: p}

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	for {
		line, err := term.Prompt("tiny> ")
		switch err {
		case nil:
			// ok
		case io.EOF, liner.ErrPromptAborted:
			fmt.Println()
			return 0
		default:
			stdlog.Printf("could not read line: %+v", err)
			return 1
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.run(os.Stdout, line)
		if err != nil {
			stdlog.Printf("%+v", err)
		}
		if quit {
			return 0
		}
	}
}

type shell struct {
	prog avr.Programmer
	part *avr.Part
}

// run executes a single shell command. It reports whether the shell
// should exit.
func (sh *shell) run(w io.Writer, line string) (quit bool, err error) {
	toks := strings.Fields(line)
	switch toks[0] {
	case "help":
		sh.help(w)
	case "parts":
		fmt.Fprintf(w, "%s\n", strings.Join(avr.PartNames(), "\n"))
	case "sig":
		err = sh.sig(w)
	case "dump":
		err = sh.dump(w, toks[1:])
	case "write":
		err = sh.write(toks[1:])
	case "erase":
		err = sh.prog.ChipErase(sh.part)
	case "sck":
		err = sh.sck(toks[1:])
	case "quit", "exit":
		quit = true
	default:
		err = fmt.Errorf("unknown command %q (try \"help\")", toks[0])
	}
	return quit, err
}

func (sh *shell) help(w io.Writer) {
	fmt.Fprintf(w, `commands:
  sig                     read the device signature
  dump MEM ADDR N         display N bytes of memory MEM at ADDR
  write MEM ADDR BYTE...  write bytes to memory MEM at ADDR
  erase                   erase the whole chip
  sck PERIOD              set the SCK clock period (e.g. 250us)
  parts                   list the known parts
  help                    display this help
  quit                    quit
`)
}

func (sh *shell) sig(w io.Writer) error {
	m, err := sh.part.Mem("signature")
	if err != nil {
		return err
	}
	var sig [3]byte
	for i := range sig {
		v, err := sh.prog.ReadByte(sh.part, m, uint32(i))
		if err != nil {
			return fmt.Errorf("could not read signature: %w", err)
		}
		sig[i] = v
	}
	name := "unknown device"
	if sig == sh.part.Signature {
		name = sh.part.Name
	}
	fmt.Fprintf(w, "signature: 0x%02x%02x%02x (%s)\n", sig[0], sig[1], sig[2], name)
	return nil
}

func (sh *shell) dump(w io.Writer, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: dump MEM ADDR N")
	}
	m, err := sh.part.Mem(args[0])
	if err != nil {
		return err
	}
	addr, err := parseUint(args[1])
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args[1], err)
	}
	n, err := parseUint(args[2])
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", args[2], err)
	}
	if int(addr)+int(n) > m.Size {
		return fmt.Errorf("dump of %d bytes at 0x%04x overflows %s (%d bytes)",
			n, addr, m.Name, m.Size,
		)
	}

	for i := uint64(0); i < n; i += 16 {
		row := n - i
		if row > 16 {
			row = 16
		}
		buf := make([]byte, row)
		for j := range buf {
			v, err := sh.prog.ReadByte(sh.part, m, uint32(addr+i)+uint32(j))
			if err != nil {
				return fmt.Errorf("could not read %s at 0x%04x: %w",
					m.Name, addr+i+uint64(j), err,
				)
			}
			buf[j] = v
		}
		fmt.Fprintf(w, "%08x  % x\n", addr+i, buf)
	}
	return nil
}

func (sh *shell) write(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: write MEM ADDR BYTE...")
	}
	m, err := sh.part.Mem(args[0])
	if err != nil {
		return err
	}
	addr, err := parseUint(args[1])
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args[1], err)
	}
	for i, arg := range args[2:] {
		v, err := parseUint(arg)
		if err != nil || v > 0xff {
			return fmt.Errorf("invalid byte %q", arg)
		}
		err = sh.prog.WriteByte(sh.part, m, uint32(addr)+uint32(i), byte(v))
		if err != nil {
			return fmt.Errorf("could not write %s at 0x%04x: %w",
				m.Name, addr+uint64(i), err,
			)
		}
	}
	return nil
}

func (sh *shell) sck(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sck PERIOD")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("invalid period %q: %w", args[0], err)
	}
	return sh.prog.SetSCKPeriod(d)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 32)
}
