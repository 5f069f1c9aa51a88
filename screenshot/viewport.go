package screenshot

import (
	"context"
	"log/slog"
	"time"
)

// Capturer defaults.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Capturer captures the current viewport for one segment.
type Capturer interface {
	Capture(ctx context.Context, segment int) ([]byte, error)
}

// ViewportCapturer wraps a CaptureFunc with bounded, fixed-delay retry.
// It never touches page state.
type ViewportCapturer struct {
	Primitive CaptureFunc
	Attempts  int
	Delay     time.Duration
	Logger    *slog.Logger
}

// NewViewportCapturer returns a capturer with the default retry policy.
func NewViewportCapturer(primitive CaptureFunc, logger *slog.Logger) *ViewportCapturer {
	return &ViewportCapturer{Primitive: primitive, Attempts: DefaultAttempts, Delay: DefaultRetryDelay, Logger: logger}
}

// Capture invokes the primitive until it returns data or the attempts are
// exhausted, in which case it returns a *CaptureError. Cancellation of ctx
// is returned as is.
func (c *ViewportCapturer) Capture(ctx context.Context, segment int) ([]byte, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := c.Primitive(ctx)
		if err == nil && len(data) == 0 {
			err = ErrEmptyCapture
		}
		if err == nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		logger.Warn("screenshot: capture attempt failed",
			"segment", segment, "attempt", attempt, "attempts", attempts, "error", err)
		if attempt < attempts {
			if err := sleep(ctx, c.Delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, &CaptureError{Segment: segment, Attempts: attempts, Err: lastErr}
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
