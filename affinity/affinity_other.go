//go:build !linux

// File: affinity/affinity_other.go
// License: Apache-2.0
//
// Stub for platforms without thread affinity support.

package affinity

import (
	"github.com/Gibheer/fastd/api"
)

func pin(int) error {
	return api.NewError(api.ErrCodeNotSupported, "affinity.Pin", nil)
}

func allowed() ([]int, error) {
	return nil, api.NewError(api.ErrCodeNotSupported, "affinity.Allowed", nil)
}
