package schedule

import (
	"context"
	"time"

	"github.com/eurogig/webtimelapse/internal/capture"
)

// Clock abstracts wall time so the loop can be driven by a fake in tests.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d, returning early with ctx.Err() if ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	return capture.Sleep(ctx, d)
}
