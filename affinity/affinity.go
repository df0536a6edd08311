// File: affinity/affinity.go
// License: Apache-2.0
//
// Pinning of the dispatch loop thread to one logical CPU. Platform code
// lives in build-tagged files.

package affinity

import (
	"fmt"

	"github.com/Gibheer/fastd/api"
)

// Pin binds the calling OS thread to cpu. The caller must hold the thread
// with runtime.LockOSThread for the pinning to stay meaningful.
func Pin(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("%w: cpu %d", api.ErrInvalidArgument, cpu)
	}
	return pin(cpu)
}

// Allowed returns the CPUs the calling thread may run on.
func Allowed() ([]int, error) {
	return allowed()
}
