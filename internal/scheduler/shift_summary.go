// Package scheduler runs the periodic shift summary.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xelth-com/spectraq/internal/history"
	ws "github.com/xelth-com/spectraq/internal/websocket"
)

// MetricsSource supplies the aggregate snapshot
type MetricsSource interface {
	Metrics(trendN int) history.Metrics
}

// SummaryStore persists snapshots. Optional.
type SummaryStore interface {
	SaveShiftSummary(ctx context.Context, m history.Metrics) error
}

// Publisher fans events out to dashboards
type Publisher interface {
	Publish(event ws.Event)
}

// ShiftSummary logs and broadcasts the metrics snapshot on a cron schedule
type ShiftSummary struct {
	schedule cron.Schedule
	expr     string
	source   MetricsSource
	store    SummaryStore
	pub      Publisher
	now      func() time.Time
}

// NewShiftSummary parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 6,14,22 * * *".
func NewShiftSummary(expr string, source MetricsSource, store SummaryStore, pub Publisher) (*ShiftSummary, error) {
	expr = strings.TrimSpace(expr)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid shift summary schedule %q: %w", expr, err)
	}
	return &ShiftSummary{
		schedule: sched,
		expr:     expr,
		source:   source,
		store:    store,
		pub:      pub,
		now:      time.Now,
	}, nil
}

// Next returns the next fire time after t
func (s *ShiftSummary) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start runs the schedule until ctx is cancelled
func (s *ShiftSummary) Start(ctx context.Context) {
	log.Printf("⏰ Shift summary scheduled (cron: %s)", s.expr)

	go func() {
		for {
			now := s.now()
			next := s.schedule.Next(now)
			wait := next.Sub(now)
			log.Printf("Next shift summary at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			s.RunOnce(ctx)
		}
	}()
}

// RunOnce takes one snapshot, logs it, persists it and broadcasts it
func (s *ShiftSummary) RunOnce(ctx context.Context) history.Metrics {
	m := s.source.Metrics(history.DefaultTrendWindow)
	log.Printf("📊 Shift summary: total=%d passed=%d rejected=%d open=%d yield=%s%% watchdog=%s",
		m.Total, m.Passed, m.Rejected, m.OpenIssues, m.PassRate, m.Watchdog.Status)

	if s.store != nil {
		if err := s.store.SaveShiftSummary(ctx, m); err != nil {
			log.Printf("⚠️ Failed to save shift summary: %v", err)
		}
	}
	if s.pub != nil {
		s.pub.Publish(ws.NewEvent(ws.EventShiftSummary, m))
	}
	return m
}
