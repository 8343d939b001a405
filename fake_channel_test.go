// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbtiny

import (
	"io"
	"time"

	"github.com/go-daq/tdaq/log"
)

type ctlMsg struct {
	req      uint8
	val, idx uint16
}

type xact struct {
	dir      byte // 'i' or 'o'
	req      uint8
	val, idx uint16
	n        int
	data     []byte
	timeout  time.Duration
}

// fakeChannel scripts the adapter side of the control channel.
// In/Out behavior is configured with the in/out hooks; without a
// hook, exchanges succeed with the full byte count.
type fakeChannel struct {
	ctls  []ctlMsg
	xacts []xact

	in     func(req uint8, val, idx uint16, p []byte) (int, error)
	out    func(req uint8, val, idx uint16, p []byte) (int, error)
	ctlErr error
}

func (ch *fakeChannel) Control(req uint8, val, idx uint16) error {
	ch.ctls = append(ch.ctls, ctlMsg{req, val, idx})
	return ch.ctlErr
}

func (ch *fakeChannel) In(req uint8, val, idx uint16, p []byte, timeout time.Duration) (int, error) {
	n, err := len(p), error(nil)
	if ch.in != nil {
		n, err = ch.in(req, val, idx, p)
	}
	ch.xacts = append(ch.xacts, xact{
		dir: 'i', req: req, val: val, idx: idx,
		n: n, data: append([]byte(nil), p...), timeout: timeout,
	})
	return n, err
}

func (ch *fakeChannel) Out(req uint8, val, idx uint16, p []byte, timeout time.Duration) (int, error) {
	n, err := len(p), error(nil)
	if ch.out != nil {
		n, err = ch.out(req, val, idx, p)
	}
	ch.xacts = append(ch.xacts, xact{
		dir: 'o', req: req, val: val, idx: idx,
		n: n, data: append([]byte(nil), p...), timeout: timeout,
	})
	return n, err
}

// spiAck acknowledges every SPI command by echoing the second
// command byte into the third response byte.
func spiAck(req uint8, val, idx uint16, p []byte) (int, error) {
	if req == reqSPI {
		p[2] = byte(val >> 8)
	}
	return len(p), nil
}

// numSPI counts the SPI exchanges among the recorded transactions.
func (ch *fakeChannel) numSPI() int {
	var n int
	for _, x := range ch.xacts {
		if x.req == reqSPI {
			n++
		}
	}
	return n
}

func newTestProg(ch Channel, opts ...Option) *Programmer {
	opts = append([]Option{
		WithMsgStream(log.NewMsgStream("usbtiny", log.LvlError, io.Discard)),
	}, opts...)
	return New(ch, opts...)
}
