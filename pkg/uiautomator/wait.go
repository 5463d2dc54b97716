package uiautomator

import (
	"context"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
)

// Waiter polls an Object until it appears or disappears. The remote side
// only answers point-in-time queries, so waiting is a bounded poll loop.
type Waiter struct {
	obj *Object
}

// poll checks presence every PollInterval until it equals want or timeout
// elapses. A final check is always made at the deadline. It returns the last
// error observed so failures can be chained.
func (w Waiter) poll(ctx context.Context, timeout time.Duration, want bool) (bool, time.Duration, error) {
	if timeout <= 0 {
		timeout = w.obj.opts.WaitTimeout
	}
	interval := w.obj.opts.PollInterval
	start := time.Now()
	deadline := start.Add(timeout)

	var lastErr error
	for {
		present, err := w.obj.Exists(ctx)
		if err == nil && present == want {
			return true, timeout, nil
		}
		if err != nil {
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			logger.Debug("wait for %s (present=%v) timed out after %v", w.obj.sel, want, time.Since(start))
			return false, timeout, lastErr
		}
		sleep := interval
		if remaining < sleep {
			sleep = remaining
		}

		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return false, timeout, lastErr
		case <-time.After(sleep):
		}
	}
}

// Exists waits up to timeout for a match. Zero timeout uses the default.
// It never returns an error; failures to query count as "not yet".
func (w Waiter) Exists(ctx context.Context, timeout time.Duration) bool {
	ok, _, _ := w.poll(ctx, timeout, true)
	return ok
}

// Gone waits up to timeout for no element to match.
func (w Waiter) Gone(ctx context.Context, timeout time.Duration) bool {
	ok, _, _ := w.poll(ctx, timeout, false)
	return ok
}

// AssertExists waits like Exists but returns a SearchError on timeout.
func (w Waiter) AssertExists(ctx context.Context, msg string, timeout time.Duration) error {
	ok, waited, lastErr := w.poll(ctx, timeout, true)
	if ok {
		return nil
	}
	if lastErr == nil {
		lastErr = core.ErrNotFound
	}
	return w.obj.searchError(msg, waited, lastErr)
}

// AssertGone waits like Gone but returns a SearchError on timeout.
func (w Waiter) AssertGone(ctx context.Context, msg string, timeout time.Duration) error {
	ok, waited, lastErr := w.poll(ctx, timeout, false)
	if ok {
		return nil
	}
	err := w.obj.searchError(msg, waited, lastErr)
	err.StillPresent = true
	return err
}

// Click waits for a match and clicks it. On timeout it returns the same
// SearchError as AssertExists.
func (w Waiter) Click(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := w.AssertExists(ctx, "", timeout); err != nil {
		return false, err
	}
	return w.obj.Click(ctx)
}
