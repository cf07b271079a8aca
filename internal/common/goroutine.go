// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs fn in a goroutine and returns a buffered channel that receives
// its error exactly once. A panic inside fn is logged with its stack and
// delivered as an error instead of crashing the process.
//
// Example:
//
//	done := common.SafeGo(logger, "pipeline", func() error {
//	    return run(ctx)
//	})
//	err := <-done
func SafeGo(logger arbor.ILogger, name string, fn func() error) <-chan error {
	atomic.AddInt64(&goroutineCounter, 1)
	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				stackTrace := string(buf[:n])

				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", stackTrace).
						Msg("Recovered from panic in goroutine")
				} else {
					fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stackTrace)
				}

				done <- fmt.Errorf("panic in %s: %v", name, r)
			}
		}()

		done <- fn()
	}()

	return done
}
