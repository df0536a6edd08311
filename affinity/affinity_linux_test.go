//go:build linux

package affinity

import (
	"errors"
	"runtime"
	"testing"

	"github.com/Gibheer/fastd/api"
)

func TestPinToAllowedCPU(t *testing.T) {
	// Left locked so the pinned thread exits with the test goroutine.
	runtime.LockOSThread()

	before, err := Allowed()
	if err != nil {
		t.Fatal(err)
	}
	if len(before) == 0 {
		t.Fatal("no allowed cpus")
	}
	if err := Pin(before[len(before)-1]); err != nil {
		t.Fatal(err)
	}
	after, err := Allowed()
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 || after[0] != before[len(before)-1] {
		t.Fatalf("allowed after pin = %v", after)
	}
}

func TestPinRejectsNegativeCPU(t *testing.T) {
	if err := Pin(-1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}
