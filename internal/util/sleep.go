// Package util holds small helpers shared across the dispatcher packages.
package util

import (
	"context"
	"time"
)

// SleepContext waits for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when ctx ended the wait. A non-positive d does not
// wait but still reports a done ctx.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
