// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package usb implements the USBtiny control channel with libusb
// vendor control transfers.
package usb // import "github.com/go-isp/usbtiny/usb"

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// USB identifiers assigned to the USBtinyISP by Adafruit Industries.
const (
	Vendor  gousb.ID = 0x1781
	Product gousb.ID = 0x0c9f
)

const defaultTimeout = 500 * time.Millisecond

// Device is an open USBtiny adapter on the USB bus.
type Device struct {
	ctx *gousb.Context
	dev *gousb.Device
}

// Open finds the first USBtiny adapter on the bus and opens it.
func Open() (*Device, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(Vendor, Product)
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("usb: could not open device %s:%s: %w", Vendor, Product, err)
	}
	if dev == nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("usb: could not find device %s:%s", Vendor, Product)
	}
	return &Device{ctx: ctx, dev: dev}, nil
}

// Close releases the device and the underlying USB context.
func (d *Device) Close() error {
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	if e := d.ctx.Close(); err == nil {
		err = e
	}
	d.dev = nil
	return err
}

// Control sends a zero-data vendor control notification.
func (d *Device) Control(req uint8, val, idx uint16) error {
	d.dev.ControlTimeout = defaultTimeout
	_, err := d.dev.Control(
		gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice,
		req, val, idx, nil,
	)
	if err != nil {
		return fmt.Errorf("usb: control request 0x%02x failed: %w", req, err)
	}
	return nil
}

// In performs an inbound vendor control transfer into p.
func (d *Device) In(req uint8, val, idx uint16, p []byte, timeout time.Duration) (int, error) {
	d.dev.ControlTimeout = timeout
	return d.dev.Control(
		gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice,
		req, val, idx, p,
	)
}

// Out performs an outbound vendor control transfer of p.
func (d *Device) Out(req uint8, val, idx uint16, p []byte, timeout time.Duration) (int, error) {
	d.dev.ControlTimeout = timeout
	return d.dev.Control(
		gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		req, val, idx, p,
	)
}
