// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbtiny

import (
	"fmt"
	"time"
)

// SetSCKPeriod sets the target SCK clock period, notifies the
// adapter (holding RESET low) and rederives the transfer chunk
// size. The period is rounded to microseconds and clamped to
// [1, 250] µs.
func (prog *Programmer) SetSCKPeriod(d time.Duration) error {
	sck := int(d.Round(time.Microsecond) / time.Microsecond)
	if sck < sckMin {
		sck = sckMin
	}
	if sck > sckMax {
		sck = sckMax
	}
	prog.sck = sck
	prog.msg.Infof("setting SCK period to %d µs", sck)

	err := prog.control(reqPowerUp, uint16(sck), resetLow)
	if err != nil {
		return fmt.Errorf("usbtiny: could not set SCK period: %w", err)
	}
	prog.setChunkSize(sck)
	return nil
}

// setChunkSize reduces the chunk size for a slow SCK to bound the
// duration of a single USB transfer.
func (prog *Programmer) setChunkSize(period int) {
	chunk := chunkMax
	for chunk > 8 && period > 16 {
		chunk >>= 1
		period >>= 1
	}
	prog.chunk = chunk
}
