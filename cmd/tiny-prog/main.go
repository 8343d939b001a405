// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tiny-prog reads and writes AVR memories through a USBtinyISP
// programmer.
//
// Usage: tiny-prog [OPTIONS] -p PART -U MEM:OP:FILE[:FMT] [-U ...]
//
// Example:
//
//	$> tiny-prog -p t85 -e -U flash:w:blink.hex
//	$> tiny-prog -p m328p -U flash:r:dump.hex:i
//	$> tiny-prog -p m328p -B 250us -U eeprom:v:cal.bin:r
package main

import (
	"bytes"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-daq/tdaq/log"

	"github.com/go-isp/usbtiny"
	"github.com/go-isp/usbtiny/avr"
	"github.com/go-isp/usbtiny/internal/ihex"
)

func main() {
	os.Exit(xmain())
}

func xmain() int {
	stdlog.SetPrefix("tiny-prog: ")
	stdlog.SetFlags(0)

	var (
		part     = flag.String("p", "", "AVR part to program (e.g. t85, m328p)")
		bitclock = flag.Duration("B", 0, "SCK clock period (e.g. 250us)")
		verbose  = flag.Bool("v", false, "enable verbose output")
		erase    = flag.Bool("e", false, "erase the chip before any memory operation")
		ops      memOpFlags
	)
	flag.Var(&ops, "U", "memory operation MEM:r|w|v:FILE[:i|r] (may be repeated)")

	flag.Usage = func() {
		fmt.Printf(`tiny-prog reads and writes AVR memories through a USBtinyISP programmer.

Usage: tiny-prog [OPTIONS] -p PART -U MEM:OP:FILE[:FMT] [-U ...]

Example:

 $> tiny-prog -p t85 -e -U flash:w:blink.hex
 $> tiny-prog -p m328p -U flash:r:dump.hex:i
 $> tiny-prog -p m328p -B 250us -U eeprom:v:cal.bin:r

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

	opts := []usbtiny.Option{}
	if *bitclock > 0 {
		opts = append(opts, usbtiny.WithSCKPeriod(*bitclock))
	}
	if *verbose {
		opts = append(opts, usbtiny.WithLogLevel(log.LvlDebug))
		opts = append(opts, usbtiny.WithProgress(progress))
	}

	prog, err := usbtiny.Open(opts...)
	if err != nil {
		stdlog.Printf("%+v", err)
		return 1
	}
	defer prog.Close()

	err = run(prog, p, *erase, ops)
	if derr := prog.PowerDown(); derr != nil && err == nil {
		err = derr
	}
	if err != nil {
		stdlog.Printf("%+v", err)
		return 1
	}
	return 0
}

func run(prog avr.Programmer, p *avr.Part, erase bool, ops []memOp) error {
	err := prog.Initialize(p)
	if err != nil {
		return fmt.Errorf("could not initialize %s: %w", p.Name, err)
	}

	err = checkSignature(prog, p)
	if err != nil {
		return err
	}

	if erase {
		if err := prog.ChipErase(p); err != nil {
			return fmt.Errorf("could not erase %s: %w", p.Name, err)
		}
	}

	for _, op := range ops {
		if err := op.run(prog, p); err != nil {
			return err
		}
	}
	return nil
}

func checkSignature(prog avr.Programmer, p *avr.Part) error {
	m, err := p.Mem("signature")
	if err != nil {
		return err
	}
	var sig [3]byte
	for i := range sig {
		v, err := prog.ReadByte(p, m, uint32(i))
		if err != nil {
			return fmt.Errorf("could not read device signature: %w", err)
		}
		sig[i] = v
	}
	if sig != p.Signature {
		return fmt.Errorf("signature mismatch: got=0x%02x%02x%02x, want=0x%02x%02x%02x (is the part really a %s?)",
			sig[0], sig[1], sig[2],
			p.Signature[0], p.Signature[1], p.Signature[2],
			p.Name,
		)
	}
	return nil
}

// A memOp is one -U MEM:OP:FILE[:FMT] memory operation.
type memOp struct {
	mem    string
	op     byte // 'r', 'w' or 'v'
	file   string
	format byte // 'i' (Intel HEX) or 'r' (raw binary)
}

func parseMemOp(s string) (memOp, error) {
	toks := strings.Split(s, ":")
	if len(toks) < 3 || len(toks) > 4 {
		return memOp{}, fmt.Errorf("invalid memory operation %q (want MEM:r|w|v:FILE[:i|r])", s)
	}
	op := memOp{mem: toks[0], file: toks[2], format: formatFor(toks[2])}
	if op.mem == "" {
		return memOp{}, fmt.Errorf("invalid memory operation %q: empty memory name", s)
	}
	switch toks[1] {
	case "r", "w", "v":
		op.op = toks[1][0]
	default:
		return memOp{}, fmt.Errorf("invalid memory operation %q: unknown op %q (want r, w or v)", s, toks[1])
	}
	if op.file == "" {
		return memOp{}, fmt.Errorf("invalid memory operation %q: empty file name", s)
	}
	if len(toks) == 4 {
		switch toks[3] {
		case "i", "r":
			op.format = toks[3][0]
		default:
			return memOp{}, fmt.Errorf("invalid memory operation %q: unknown format %q (want i or r)", s, toks[3])
		}
	}
	return op, nil
}

// formatFor guesses the image format from the file extension; Intel
// HEX unless the extension says raw binary.
func formatFor(fname string) byte {
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".bin", ".raw", ".img":
		return 'r'
	}
	return 'i'
}

func (op memOp) run(prog avr.Programmer, p *avr.Part) error {
	m, err := p.Mem(op.mem)
	if err != nil {
		return err
	}
	switch op.op {
	case 'r':
		n, err := prog.PagedLoad(p, m, m.Size)
		if err != nil {
			return fmt.Errorf("could not read %s: %w", m.Name, err)
		}
		err = writeImage(op.file, op.format, m.Buf[:n])
		if err != nil {
			return err
		}

	case 'w':
		n, err := readImage(op.file, op.format, m)
		if err != nil {
			return err
		}
		if _, err := prog.PagedWrite(p, m, n); err != nil {
			return fmt.Errorf("could not write %s: %w", m.Name, err)
		}
		// writes are verified, like avrdude does
		return verify(prog, p, m, n)

	case 'v':
		n, err := readImage(op.file, op.format, m)
		if err != nil {
			return err
		}
		return verify(prog, p, m, n)
	}
	return nil
}

// verify reads the first n bytes of the region back from the device
// and compares them with the image currently held in the region
// buffer.
func verify(prog avr.Programmer, p *avr.Part, m *avr.Mem, n int) error {
	img := append([]byte(nil), m.Buf[:n]...)
	if _, err := prog.PagedLoad(p, m, n); err != nil {
		return fmt.Errorf("could not read back %s: %w", m.Name, err)
	}
	for i := range img {
		if img[i] != m.Buf[i] {
			return fmt.Errorf("verification of %s failed at 0x%04x: got=0x%02x, want=0x%02x",
				m.Name, i, m.Buf[i], img[i],
			)
		}
	}
	return nil
}

// readImage loads the file into the region buffer and returns the
// image extent, the offset just past the last byte the file defines.
func readImage(fname string, format byte, m *avr.Mem) (int, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return 0, fmt.Errorf("could not read image %q: %w", fname, err)
	}

	for i := range m.Buf {
		m.Buf[i] = 0xff // erased state
	}

	switch format {
	case 'r':
		if len(raw) > len(m.Buf) {
			return 0, fmt.Errorf("image %q (%d bytes) does not fit in %s (%d bytes)",
				fname, len(raw), m.Name, len(m.Buf),
			)
		}
		copy(m.Buf, raw)
		return len(raw), nil

	default:
		chunks, err := ihex.Decode(bytes.NewReader(raw))
		if err != nil {
			return 0, fmt.Errorf("could not decode image %q: %w", fname, err)
		}
		var n int
		for _, c := range chunks {
			end := int(c.Addr) + len(c.Data)
			if end > len(m.Buf) {
				return 0, fmt.Errorf("image %q (ends at 0x%04x) does not fit in %s (%d bytes)",
					fname, end, m.Name, len(m.Buf),
				)
			}
			copy(m.Buf[c.Addr:], c.Data)
			if end > n {
				n = end
			}
		}
		return n, nil
	}
}

func writeImage(fname string, format byte, data []byte) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create image %q: %w", fname, err)
	}
	defer f.Close()

	switch format {
	case 'r':
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("could not write image %q: %w", fname, err)
		}
	default:
		err := ihex.Encode(f, []ihex.Chunk{{Addr: 0, Data: data}})
		if err != nil {
			return fmt.Errorf("could not write image %q: %w", fname, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close image %q: %w", fname, err)
	}
	return nil
}

// memOpFlags collects repeated -U flags.
type memOpFlags []memOp

func (ops *memOpFlags) String() string {
	strs := make([]string, len(*ops))
	for i, op := range *ops {
		strs[i] = fmt.Sprintf("%s:%c:%s:%c", op.mem, op.op, op.file, op.format)
	}
	return strings.Join(strs, ",")
}

func (ops *memOpFlags) Set(s string) error {
	op, err := parseMemOp(s)
	if err != nil {
		return err
	}
	*ops = append(*ops, op)
	return nil
}

func progress(done, total int) {
	fmt.Fprintf(os.Stderr, "\r%3d%% (%d/%d bytes)", done*100/total, done, total)
	if done == total {
		fmt.Fprintln(os.Stderr)
	}
}
