// Copyright 2025 The go-isp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usbtiny

import "runtime/debug"

// Version returns the module version baked into the binary, or the
// empty string when the binary was built without module support.
func Version() string {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) string {
	if b == nil {
		return ""
	}

	const root = "github.com/go-isp/usbtiny"
	if b.Main.Path == root {
		return b.Main.Version
	}
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil && m.Replace.Version != "" {
			return m.Replace.Version
		}
		return m.Version
	}
	return ""
}
