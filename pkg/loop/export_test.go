package loop

import (
	"context"
	"time"
)

// SetSleep replaces the delay function for testing.
func (l *Loop) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	l.sleep = fn
}
