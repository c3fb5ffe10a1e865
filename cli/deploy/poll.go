package deploy

import (
	"context"
	"time"

	"github.com/elly0t/skycli/cli/apperr"
	"github.com/elly0t/skycli/cli/clock"
	"github.com/elly0t/skycli/cli/model"
)

// DefaultPollInterval is the pause between two status checks while a cloud
// code is still Pending.
const DefaultPollInterval = 3 * time.Second

// StatusFunc fetches the current status of the deployment being waited on.
type StatusFunc func(ctx context.Context) (model.CloudCodeStatus, error)

// WaitForStatus polls fetch until it reports a terminal status and returns
// that status. Pending schedules one more check after interval; any status
// outside Pending, Running and DeployFailed is a protocol error. Fetch
// errors end the loop immediately, as does cancelling ctx.
//
// There is no attempt limit; bound the wait with a context deadline.
func WaitForStatus(ctx context.Context, fetch StatusFunc, clk clock.Clock, interval time.Duration) (model.CloudCodeStatus, error) {
	if clk == nil {
		clk = clock.Real()
	}

	for {
		status, err := fetch(ctx)
		if err != nil {
			return "", err
		}

		switch {
		case status.IsTerminal():
			return status, nil
		case status != model.CloudCodeStatusPending:
			return "", apperr.Protocol("wait", "unexpected cloud code status: %q", string(status))
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-clk.After(interval):
		}
	}
}
