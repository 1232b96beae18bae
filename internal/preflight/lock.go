package preflight

import (
	"fmt"

	"github.com/gofrs/flock"
)

// CheckRunLock reports whether another declutter run currently holds the
// run lock. The probe releases the lock immediately.
func CheckRunLock(path string) Result {
	const name = "Run lock"

	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !locked {
		return Result{Name: name, Detail: "another run is in progress"}
	}
	_ = lock.Unlock()
	return Result{Name: name, Passed: true, Detail: "Idle"}
}
