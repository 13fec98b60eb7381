// Package backfill periodically renders and uploads barcode images for
// item records that lack one.
package backfill

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qnl/fab-notion/internal/barcode"
	"github.com/qnl/fab-notion/internal/notion"
	"github.com/qnl/fab-notion/internal/scan"
)

// DefaultInterval is the pause between backfill cycles.
const DefaultInterval = time.Minute

// Store is the subset of the record store the backfiller uses.
type Store interface {
	QueryCollection(ctx context.Context, collectionID uuid.UUID) ([]*notion.Record, error)
	UploadFileToRecordProperty(ctx context.Context, record *notion.Record, path, property string) error
}

// Backfiller scans the supplies collection for records missing a barcode
// attachment, renders one per record, and uploads it.
type Backfiller struct {
	store        Store
	mu           *sync.Mutex
	collectionID uuid.UUID
	outputDir    string
	interval     time.Duration
	renderOpts   barcode.Options
}

// Option configures a Backfiller.
type Option func(*Backfiller)

// WithInterval overrides the pause between cycles.
func WithInterval(interval time.Duration) Option {
	return func(b *Backfiller) {
		b.interval = interval
	}
}

// WithRenderOptions overrides the barcode rendering geometry.
func WithRenderOptions(opts barcode.Options) Option {
	return func(b *Backfiller) {
		b.renderOpts = opts
	}
}

// New creates a backfiller over the given collection, writing images to
// outputDir. All record mutation is serialized through mu.
func New(store Store, mu *sync.Mutex, collectionID uuid.UUID, outputDir string, opts ...Option) *Backfiller {
	b := &Backfiller{
		store:        store,
		mu:           mu,
		collectionID: collectionID,
		outputDir:    outputDir,
		interval:     DefaultInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes backfill cycles until the context is cancelled. The
// interval is measured from the end of one cycle to the start of the
// next, so a slow batch delays the following one rather than overlapping
// it. A failed cycle is logged and the loop continues.
func (b *Backfiller) Run(ctx context.Context) {
	for {
		if err := b.runCycle(ctx); err != nil {
			slog.Error("Backfill cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("Backfill loop stopping")
			return
		case <-time.After(b.interval):
		}
	}
}

// runCycle lists the collection and backfills every record missing a
// barcode. The whole batch runs under the shared record lock; this
// serializes backfill against concurrent stock adjustments for the full
// batch duration. A narrower per-record lock would shorten stalls but
// weaken the no-concurrent-mutation guarantee around the listing.
func (b *Backfiller) runCycle(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.store.QueryCollection(ctx, b.collectionID)
	if err != nil {
		return fmt.Errorf("failed to list collection: %w", err)
	}

	for _, record := range records {
		if record.HasBarcode() {
			continue
		}
		if err := b.backfillRecord(ctx, record); err != nil {
			slog.Warn("Failed to backfill barcode",
				"item", record.ID,
				"title", record.Title(),
				"error", err)
		}
	}
	return nil
}

// backfillRecord renders a barcode embedding the record's scan code,
// writes it to the output directory, and attaches it to the record.
func (b *Backfiller) backfillRecord(ctx context.Context, record *notion.Record) error {
	slog.Info("Creating barcode", "title", record.Title())

	code := scan.Encode(record.ID)
	filename := barcode.Filename(record.Title())
	label := strings.TrimSuffix(filename, ".svg")

	var buf bytes.Buffer
	if err := barcode.Render(&buf, code, label, b.renderOpts); err != nil {
		return fmt.Errorf("failed to render barcode: %w", err)
	}

	path := filepath.Join(b.outputDir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write barcode image: %w", err)
	}

	return b.store.UploadFileToRecordProperty(ctx, record, path, notion.BarcodeProperty)
}
