package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// triggerPollLimit bounds how many triggers one drain handles.
const triggerPollLimit = 100

// TriggerLoop drains the on-demand fetch mailbox between scheduled
// cycles. Multiple pending triggers for the same user coalesce into a
// single fetch over the widest requested window; each trigger is still
// individually consumed so a replica crash re-delivers unhandled ones.
type TriggerLoop struct {
	mailbox   storage.TriggerMailbox
	users     storage.UserStore
	scheduler *Scheduler
	interval  time.Duration
	metrics   *observability.Metrics
	logger    *observability.Logger
}

// NewTriggerLoop wires a mailbox drain loop.
func NewTriggerLoop(mailbox storage.TriggerMailbox, users storage.UserStore, scheduler *Scheduler, interval time.Duration, metrics *observability.Metrics, logger *observability.Logger) *TriggerLoop {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &TriggerLoop{
		mailbox:   mailbox,
		users:     users,
		scheduler: scheduler,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run polls the mailbox until the context is cancelled.
func (l *TriggerLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.WithField("interval", l.interval.String()).Info("trigger loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("trigger loop stopped")
			return
		case <-ticker.C:
			if handled, err := l.DrainOnce(ctx); err != nil {
				l.logger.WithError(err).Error("trigger drain failed")
			} else if handled > 0 {
				l.logger.WithField("handled", handled).Info("drained fetch triggers")
			}
		}
	}
}

// DrainOnce handles one batch of pending triggers and returns how many
// this replica won. Triggers won by another replica are skipped.
func (l *TriggerLoop) DrainOnce(ctx context.Context) (int, error) {
	triggers, err := l.mailbox.PollUnconsumed(ctx, triggerPollLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to poll triggers: %w", err)
	}
	if len(triggers) == 0 {
		return 0, nil
	}

	// Consume first, then fetch once per user over the widest window.
	wanted := make(map[int64]int)
	won := 0
	for _, trigger := range triggers {
		ok, err := l.mailbox.Consume(ctx, trigger.ID)
		if err != nil {
			return won, fmt.Errorf("failed to consume trigger %d: %w", trigger.ID, err)
		}
		if !ok {
			continue
		}
		won++
		if l.metrics != nil {
			l.metrics.TriggersConsumedTotal.Inc()
		}
		if trigger.DaysBack > wanted[trigger.UserID] {
			wanted[trigger.UserID] = trigger.DaysBack
		}
	}
	if len(wanted) == 0 {
		return won, nil
	}

	users, err := l.users.ListUsers(ctx)
	if err != nil {
		return won, fmt.Errorf("failed to list users: %w", err)
	}
	for _, user := range users {
		daysBack, ok := wanted[user.ID]
		if !ok {
			continue
		}
		delete(wanted, user.ID)
		if _, err := l.scheduler.RunUser(ctx, user, daysBack); err != nil {
			l.logger.WithError(err).WithField("user_id", user.ID).Error("triggered fetch failed")
		}
	}
	for userID := range wanted {
		l.logger.WithField("user_id", userID).Warn("trigger references unknown user")
	}
	return won, nil
}
