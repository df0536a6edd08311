//go:build !linux
// +build !linux

// File: reactor/epoll_other.go
// License: Apache-2.0
//
// epoll is Linux only; other platforms use the poll backend.

package reactor

import (
	"fmt"

	"github.com/Gibheer/fastd/api"
)

func newEpoll(Sources) (Multiplexer, error) {
	return nil, fmt.Errorf("%w: epoll backend on this platform", api.ErrNotSupported)
}
