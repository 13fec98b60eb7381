// Package heartbeat keeps the status record's title showing when the
// scanner was last alive.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qnl/fab-notion/internal/notion"
)

// DefaultInterval is the pause between heartbeat updates.
const DefaultInterval = time.Minute

// timestampLayout renders like "Monday, May 4, 2026 at 3:04 PM".
const timestampLayout = "Monday, January 2, 2006 at 3:04 PM"

// titleTemplate is the status record title, with markdown emphasis the
// store renders in place.
const titleTemplate = "__Barcode Scanner Status:__ _Last seen %s_"

// Store is the subset of the record store the heartbeat uses.
type Store interface {
	RefreshRecord(ctx context.Context, record *notion.Record) error
	SetTitle(ctx context.Context, record *notion.Record, title string) error
}

// Heartbeat periodically rewrites the status record's title with the
// current time in the display timezone.
type Heartbeat struct {
	store    Store
	mu       *sync.Mutex
	status   *notion.Record
	location *time.Location
	interval time.Duration
	now      func() time.Time
}

// Option configures a Heartbeat.
type Option func(*Heartbeat)

// WithInterval overrides the pause between updates.
func WithInterval(interval time.Duration) Option {
	return func(h *Heartbeat) {
		h.interval = interval
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Heartbeat) {
		h.now = now
	}
}

// New creates a heartbeat for the status record. Record mutation is
// serialized through mu, shared with the other loops.
func New(store Store, mu *sync.Mutex, status *notion.Record, location *time.Location, opts ...Option) *Heartbeat {
	h := &Heartbeat{
		store:    store,
		mu:       mu,
		status:   status,
		location: location,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run updates the status record until the context is cancelled. A failed
// cycle is logged and the loop continues.
func (h *Heartbeat) Run(ctx context.Context) {
	for {
		if err := h.runCycle(ctx); err != nil {
			slog.Error("Heartbeat cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("Heartbeat loop stopping")
			return
		case <-time.After(h.interval):
		}
	}
}

// runCycle refreshes the status record, then rewrites its title. The two
// lock acquisitions are deliberately separate: no other loop writes this
// record, so the pair does not need to be atomic, and the formatting
// happens outside the lock.
func (h *Heartbeat) runCycle(ctx context.Context) error {
	h.mu.Lock()
	err := h.store.RefreshRecord(ctx, h.status)
	h.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to refresh status record: %w", err)
	}

	timestamp := h.now().In(h.location).Format(timestampLayout)
	title := fmt.Sprintf(titleTemplate, timestamp)

	h.mu.Lock()
	err = h.store.SetTitle(ctx, h.status, title)
	h.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to update status title: %w", err)
	}
	return nil
}
