// Package tracker applies scanned stock adjustments to item records.
package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/qnl/fab-notion/internal/notion"
	"github.com/qnl/fab-notion/internal/scan"
)

// Store is the subset of the record store the tracker mutates.
type Store interface {
	GetRecord(ctx context.Context, id uuid.UUID) (*notion.Record, error)
	SetStock(ctx context.Context, record *notion.Record, stock int) error
}

// Tracker is the single consumer of the scan queue. It applies the
// current adjustment direction to each scanned item's stock under the
// shared record lock. The direction is tracker-local state: it starts as
// decrement and only mode-switch scans change it.
type Tracker struct {
	queue *scan.Queue
	store Store
	mu    *sync.Mutex
	mode  scan.Direction
}

// New creates a tracker consuming queue against store. All record
// mutation is serialized through mu, shared with the other loops.
func New(queue *scan.Queue, store Store, mu *sync.Mutex) *Tracker {
	return &Tracker{
		queue: queue,
		store: store,
		mu:    mu,
		mode:  scan.Decrement,
	}
}

// Run consumes events until the queue is closed. A failed adjustment is
// logged and the next event is processed; a single bad scan never stops
// the tracker.
func (t *Tracker) Run(ctx context.Context) {
	for {
		event, ok := t.queue.Pop()
		if !ok {
			return
		}

		switch event.Kind {
		case scan.KindSetMode:
			// Mode switches never touch the store or the lock.
			t.mode = event.Mode
			slog.Info("Adjustment mode switched", "direction", int(t.mode))
		case scan.KindItem:
			if err := t.adjust(ctx, event.ItemID); err != nil {
				slog.Warn("Failed to process scan", "item", event.ItemID, "error", err)
			}
		}
	}
}

// adjust fetches an item, applies the signed adjustment clamped at zero,
// and writes the result back. The lock is held only for this span, never
// across queue waits.
func (t *Tracker) adjust(ctx context.Context, id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, err := t.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	stock := record.Stock() + int(t.mode)
	if stock < 0 {
		stock = 0
	}
	if err := t.store.SetStock(ctx, record, stock); err != nil {
		return err
	}

	slog.Info("Processing item", "title", record.Title(), "stock", stock)
	return nil
}
