// Package refresh keeps the aggregation cache warm by re-fetching the
// current month on a cron schedule, so interactive callers mostly hit fresh
// cache entries.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/calendar"
)

// DefaultSchedule re-fetches every 15 minutes.
const DefaultSchedule = "*/15 * * * *"

// Warmer periodically forces a refresh of the current month's merged events.
type Warmer struct {
	service  *calendar.Service
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
}

// New creates a warmer for service. An empty schedule uses DefaultSchedule.
func New(service *calendar.Service, schedule string) *Warmer {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Warmer{
		service:  service,
		schedule: schedule,
		timeout:  2 * time.Minute,
		cron:     cron.New(),
	}
}

// Start registers the cron job and begins the schedule.
func (w *Warmer) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.run); err != nil {
		return err
	}
	w.cron.Start()
	slog.Info("cache warmer started", "schedule", w.schedule)
	return nil
}

// Stop halts the schedule. A run already in flight completes.
func (w *Warmer) Stop() {
	w.cron.Stop()
}

func (w *Warmer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.WarmNow(ctx); err != nil {
		slog.Warn("cache warm failed", "error", err)
	}
}

// WarmNow force-refreshes the current calendar month immediately.
func (w *Warmer) WarmNow(ctx context.Context) error {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
	opts := calendar.NewFetchOptions(start, start.AddDate(0, 1, 0))
	opts.ForceRefresh = true

	events, err := w.service.AllEvents(ctx, opts)
	if err != nil {
		return err
	}
	slog.Debug("cache warmed", "events", len(events))
	return nil
}
