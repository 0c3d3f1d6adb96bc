package financial

import (
	"context"
	"fmt"
	"time"

	dErrors "onboard/pkg/domain-errors"
)

// Poller drives an asynchronous job with a fixed interval and a capped
// number of polls. Waits are timer based and end early on ctx.
type Poller struct {
	interval time.Duration
	maxPolls int
	wait     func(ctx context.Context, d time.Duration) error
}

func NewPoller(interval time.Duration, maxPolls int) *Poller {
	if maxPolls < 1 {
		maxPolls = 1
	}
	return &Poller{interval: interval, maxPolls: maxPolls, wait: waitTimer}
}

// Run polls until the job leaves Pending. It returns the final status and
// the number of polls made. Exhausting the cap returns a CodeTimeout error;
// a failed job returns a CodeProvider error.
func (p *Poller) Run(ctx context.Context, poll func(ctx context.Context) (*JobStatus, error)) (*JobStatus, int, error) {
	for n := 1; n <= p.maxPolls; n++ {
		status, err := poll(ctx)
		if err != nil {
			return nil, n, dErrors.Wrap(err, dErrors.CodeProvider, "statement poll failed")
		}
		switch status.State {
		case JobComplete:
			return status, n, nil
		case JobFailed:
			return status, n, dErrors.New(dErrors.CodeProvider, "statement job failed: "+status.Reason)
		}
		if n == p.maxPolls {
			break
		}
		if err := p.wait(ctx, p.interval); err != nil {
			return nil, n, dErrors.Wrap(err, dErrors.CodeTimeout, "statement polling cancelled")
		}
	}
	return nil, p.maxPolls, dErrors.New(dErrors.CodeTimeout,
		fmt.Sprintf("statement job still pending after %d polls", p.maxPolls))
}

func waitTimer(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
