//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd
// +build !linux,!darwin,!freebsd,!netbsd,!openbsd

// File: reactor/poll_other.go
// License: Apache-2.0

package reactor

import (
	"fmt"

	"github.com/Gibheer/fastd/api"
)

func newPoll(Sources) (Multiplexer, error) {
	return nil, fmt.Errorf("%w: poll backend on this platform", api.ErrNotSupported)
}
