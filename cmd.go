// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbtiny

import (
	"errors"
	"fmt"

	"github.com/go-isp/usbtiny/avr"
)

// ErrNoAck reports that the adapter's response to an ISP command
// did not carry the expected command echo.
var ErrNoAck = errors.New("usbtiny: no acknowledgment from adapter")

// Cmd relays a raw 4-byte ISP command to the target and collects
// the 4-byte response. Issuing any command invalidates the read
// cache: the command may alter device state behind it.
//
// The adapter echoes the second command byte as the third response
// byte; a response without that echo is reported as ErrNoAck.
func (prog *Programmer) Cmd(cmd, res *[4]byte) error {
	prog.cache.mem = nil

	*res = [4]byte{}
	err := prog.usbIn(reqSPI,
		uint16(cmd[1])<<8|uint16(cmd[0]),
		uint16(cmd[3])<<8|uint16(cmd[2]),
		res[:], 8*prog.sck,
	)
	prog.msg.Debugf("cmd: [% x] -> [% x]", cmd[:], res[:])
	if err != nil {
		return err
	}
	if res[2] != cmd[1] {
		return fmt.Errorf("%w: sent [% x], received [% x]", ErrNoAck, cmd[:], res[:])
	}
	return nil
}

// issueOp assembles the part-level command template for the given
// operation and relays it. A part without a template for the
// operation is a configuration error.
func (prog *Programmer) issueOp(p *avr.Part, kind avr.OpKind, res *[4]byte) error {
	op := p.Ops[kind]
	if op == nil {
		prog.msg.Errorf("operation %v not defined for part %q", kind, p.Name)
		return fmt.Errorf("usbtiny: operation %v not defined for part %q", kind, p.Name)
	}

	var cmd [4]byte
	op.SetBits(&cmd)
	return prog.Cmd(&cmd, res)
}
