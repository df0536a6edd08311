//go:build !linux
// +build !linux

// control/platform_other.go
// License: Apache-2.0

package control

import (
	"runtime"
)

// DefaultBackend returns the preferred multiplexer backend.
func DefaultBackend() string {
	return "poll"
}

// RegisterPlatformHooks sets platform debug hooks.
func RegisterPlatformHooks(dp *DebugHooks) {
	dp.RegisterHook("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterHook("platform.default_backend", func() any {
		return DefaultBackend()
	})
}
