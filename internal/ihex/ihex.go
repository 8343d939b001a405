// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ihex decodes and encodes Intel HEX images.
package ihex

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
)

// record types
const (
	recData    = 0x00
	recEOF     = 0x01
	recExtSeg  = 0x02
	recStart16 = 0x03
	recExtLin  = 0x04
	recStart32 = 0x05
)

// A Chunk is a contiguous run of bytes at an absolute address.
type Chunk struct {
	Addr uint32
	Data []byte
}

// Decode reads an Intel HEX stream and returns its contents as
// chunks of contiguous data, in file order. Adjacent records are
// merged. Extended segment (02) and extended linear (04) address
// records relocate subsequent data records; start address records
// (03, 05) are ignored.
func Decode(r io.Reader) ([]Chunk, error) {
	var (
		chunks []Chunk
		base   uint32
		sc     = bufio.NewScanner(r)
		line   int
	)
	for sc.Scan() {
		line++
		txt := sc.Text()
		if txt == "" {
			continue
		}
		if txt[0] != ':' {
			return nil, fmt.Errorf("ihex: line %d: missing record mark", line)
		}
		rec, err := hex.DecodeString(txt[1:])
		if err != nil {
			return nil, fmt.Errorf("ihex: line %d: %w", line, err)
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("ihex: line %d: record too short (%d bytes)", line, len(rec))
		}
		count := int(rec[0])
		if len(rec) != 5+count {
			return nil, fmt.Errorf("ihex: line %d: invalid record length: got=%d, want=%d",
				line, len(rec), 5+count,
			)
		}
		var sum byte
		for _, v := range rec {
			sum += v
		}
		if sum != 0 {
			return nil, fmt.Errorf("ihex: line %d: invalid checksum", line)
		}

		var (
			addr    = uint32(rec[1])<<8 | uint32(rec[2])
			typ     = rec[3]
			payload = rec[4 : 4+count]
		)
		switch typ {
		case recData:
			abs := base + addr
			if i := len(chunks) - 1; i >= 0 &&
				abs == chunks[i].Addr+uint32(len(chunks[i].Data)) {
				chunks[i].Data = append(chunks[i].Data, payload...)
				continue
			}
			chunks = append(chunks, Chunk{
				Addr: abs,
				Data: append([]byte(nil), payload...),
			})

		case recEOF:
			return chunks, nil

		case recExtSeg:
			if count != 2 {
				return nil, fmt.Errorf("ihex: line %d: invalid segment address record", line)
			}
			base = (uint32(payload[0])<<8 | uint32(payload[1])) << 4

		case recExtLin:
			if count != 2 {
				return nil, fmt.Errorf("ihex: line %d: invalid linear address record", line)
			}
			base = (uint32(payload[0])<<8 | uint32(payload[1])) << 16

		case recStart16, recStart32:
			// entry points are irrelevant to memory images

		default:
			return nil, fmt.Errorf("ihex: line %d: unknown record type 0x%02x", line, typ)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ihex: could not read stream: %w", err)
	}
	return nil, fmt.Errorf("ihex: missing end-of-file record")
}

// Encode writes the chunks as an Intel HEX stream, 16 bytes per data
// record, with extended linear address records where a chunk crosses
// a 64 KiB boundary, and a final end-of-file record.
func Encode(w io.Writer, chunks []Chunk) error {
	high := uint32(0)
	for _, c := range chunks {
		addr := c.Addr
		data := c.Data
		for len(data) > 0 {
			n := 16
			if n > len(data) {
				n = len(data)
			}
			// keep each record within its 64 KiB window
			if rest := 0x10000 - int(addr&0xffff); n > rest {
				n = rest
			}
			if h := addr >> 16; h != high {
				err := record(w, 0, recExtLin, []byte{byte(h >> 8), byte(h)})
				if err != nil {
					return err
				}
				high = h
			}
			if err := record(w, uint16(addr), recData, data[:n]); err != nil {
				return err
			}
			addr += uint32(n)
			data = data[n:]
		}
	}
	return record(w, 0, recEOF, nil)
}

func record(w io.Writer, addr uint16, typ byte, data []byte) error {
	sum := byte(len(data)) + byte(addr>>8) + byte(addr) + typ
	for _, v := range data {
		sum += v
	}
	_, err := fmt.Fprintf(w, ":%02X%04X%02X%X%02X\n", len(data), addr, typ, data, -sum)
	if err != nil {
		return fmt.Errorf("ihex: could not write record: %w", err)
	}
	return nil
}
