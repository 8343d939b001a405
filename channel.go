// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbtiny

import (
	"fmt"
	"time"

	"github.com/go-isp/usbtiny/usb"
)

// Channel is the request/response control channel to the adapter.
// All exchanges are synchronous and blocking; the driver issues at
// most one outstanding request at a time.
type Channel interface {
	// Control sends a zero-data control notification.
	Control(req uint8, val, idx uint16) error

	// In performs an inbound exchange, filling p with the adapter's
	// response. It returns the number of bytes actually transferred.
	In(req uint8, val, idx uint16, p []byte, timeout time.Duration) (int, error)

	// Out performs an outbound exchange, sending p to the adapter.
	// It returns the number of bytes actually transferred.
	Out(req uint8, val, idx uint16, p []byte, timeout time.Duration) (int, error)
}

var usbOpen = usbOpenImpl

func usbOpenImpl() (Channel, error) {
	return usb.Open()
}

// timeout computes the per-transfer timeout for n bytes at a cost
// of umax µs per byte.
func (prog *Programmer) timeout(n, umax int) time.Duration {
	return usbTimeout + time.Duration(n*umax)*time.Microsecond
}

func (prog *Programmer) control(req uint8, val, idx uint16) error {
	return prog.ch.Control(req, val, idx)
}

func (prog *Programmer) usbIn(req uint8, val, idx uint16, p []byte, umax int) error {
	n, err := prog.ch.In(req, val, idx, p, prog.timeout(len(p), umax))
	switch {
	case err != nil:
		return fmt.Errorf("usbtiny: read error: %w", err)
	case n != len(p):
		return fmt.Errorf("usbtiny: read error: expected %d bytes, got %d", len(p), n)
	}
	return nil
}

func (prog *Programmer) usbOut(req uint8, val, idx uint16, p []byte, umax int) error {
	n, err := prog.ch.Out(req, val, idx, p, prog.timeout(len(p), umax))
	switch {
	case err != nil:
		return fmt.Errorf("usbtiny: write error: %w", err)
	case n != len(p):
		return fmt.Errorf("usbtiny: write error: expected %d bytes, got %d", len(p), n)
	}
	return nil
}
