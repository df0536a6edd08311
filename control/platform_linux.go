//go:build linux
// +build linux

// control/platform_linux.go
// License: Apache-2.0
//
// Linux-specific defaults and debug hook integrations.

package control

import (
	"runtime"
)

// DefaultBackend returns the preferred multiplexer backend.
func DefaultBackend() string {
	return "epoll"
}

// RegisterPlatformHooks sets Linux-specific debug hooks.
func RegisterPlatformHooks(dp *DebugHooks) {
	dp.RegisterHook("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterHook("platform.default_backend", func() any {
		return DefaultBackend()
	})
}
