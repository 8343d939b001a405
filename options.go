// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbtiny

import (
	"time"

	"github.com/go-daq/tdaq/log"
)

type config struct {
	bitclock time.Duration // requested SCK period; 0 selects the default
	progress func(done, total int)
	msg      log.MsgStream
	lvl      log.Level
}

func newConfig() config {
	return config{
		lvl: log.LvlInfo,
	}
}

// Option configures a Programmer.
type Option func(*config)

// WithSCKPeriod requests a target SCK clock period. The period is
// rounded to microseconds and clamped to the adapter's valid range
// during Initialize.
func WithSCKPeriod(d time.Duration) Option {
	return func(cfg *config) {
		cfg.bitclock = d
	}
}

// WithProgress registers a sink for paged-transfer progress,
// called with (done, total) byte counts after each chunk.
func WithProgress(f func(done, total int)) Option {
	return func(cfg *config) {
		cfg.progress = f
	}
}

// WithLogLevel sets the verbosity of the message stream New creates.
// LvlDebug echoes every raw command/response exchange. A stream
// supplied with WithMsgStream keeps its own level.
func WithLogLevel(lvl log.Level) Option {
	return func(cfg *config) {
		cfg.lvl = lvl
	}
}

// WithMsgStream sets the message stream the driver logs to.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

func (prog *Programmer) reportProgress(done, total int) {
	if prog.cfg.progress != nil {
		prog.cfg.progress(done, total)
	}
}
