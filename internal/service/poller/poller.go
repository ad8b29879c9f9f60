package poller

import (
	"context"
	"time"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/logger"
)

// Lifecycle is the part of the lifecycle service the poller drives.
type Lifecycle interface {
	Session(ctx context.Context) *domain.Session
	GetStatus(ctx context.Context) (*domain.Session, error)
}

// Run refreshes the remote status of the active alarm every interval until
// ctx is canceled. A non-positive interval disables polling. Failures are
// logged and polling continues.
func Run(ctx context.Context, lc Lifecycle, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ctx = logger.WithName(ctx, "poller")

	logger.InfoKV(ctx, "Polling alarm status", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, poller exiting")

			return
		case <-ticker.C:
			poll(ctx, lc)
		}
	}
}

// poll refreshes the status when an alarm is active.
func poll(ctx context.Context, lc Lifecycle) {
	if lc.Session(ctx).Status != domain.StatusActive {
		return
	}

	session, err := lc.GetStatus(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Status poll failed", "error", err, "transient", domain.IsTransient(err))

		return
	}

	logger.DebugKV(ctx, "Alarm status polled",
		"alarm_id", session.AlarmID,
		"remote_status", session.RemoteStatus,
		"last_event_type", session.LastEventType,
	)
}
