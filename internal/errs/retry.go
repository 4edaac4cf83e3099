package errs

import (
	"math/rand"
	"time"
)

// RetryController implements exponential backoff with jitter for
// operations whose errors a Classifier marks transient. The persistence
// drivers do not use it: a failed write surfaces to the committer as-is.
type RetryController struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRetries   int
}

// NewRetryController returns a controller with conservative defaults:
// 10ms initial delay, 1s cap, 5 retries.
func NewRetryController() *RetryController {
	return &RetryController{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		MaxRetries:   5,
	}
}

// Retry runs fn, retrying transient failures (per classifier) with
// exponential backoff. Permanent and critical errors return immediately.
func (rc *RetryController) Retry(fn func() error, classifier *Classifier) error {
	var lastErr error

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if !classifier.ShouldRetry(classifier.Classify(err)) {
			return err
		}
		if attempt >= rc.MaxRetries {
			return err
		}

		time.Sleep(rc.delay(attempt))
	}

	return lastErr
}

func (rc *RetryController) delay(attempt int) time.Duration {
	d := rc.InitialDelay * time.Duration(uint64(1)<<uint(attempt))
	if d > rc.MaxDelay || d <= 0 {
		d = rc.MaxDelay
	}

	jitter := time.Duration(float64(d) * 0.25 * (rand.Float64()*2 - 1))
	d += jitter
	if d < 0 {
		d = rc.InitialDelay
	}
	return d
}
