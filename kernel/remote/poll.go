package remote

import (
	"context"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/pkg/errors"
)

// CheckFunc reports whether the awaited condition has been reached.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Poll invokes check immediately and then every interval until it reports done, returns
// an error, the timeout budget is spent, or ctx is cancelled. Running out of budget is a
// Timeout fault; parent cancellation is returned as the context error.
func Poll(ctx context.Context, interval, timeout time.Duration, check CheckFunc) error {
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		done, err := check(deadline)
		if err != nil {
			if ctx.Err() == nil && deadline.Err() != nil {
				return fault.Wrap(fault.Timeout, err, "gave up after %s (%d attempts)", timeout, attempt)
			}
			return err
		}
		if done {
			return nil
		}

		select {
		case <-deadline.Done():
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), "polling cancelled")
			}
			return fault.New(fault.Timeout, "remote command did not finish within %s (%d attempts)", timeout, attempt)
		case <-time.After(interval):
		}
	}
}
