package app

import (
	"github.com/qnl/fab-notion/internal/backfill"
	"github.com/qnl/fab-notion/internal/heartbeat"
	"github.com/qnl/fab-notion/internal/notion"
	"github.com/qnl/fab-notion/internal/scan"
	"github.com/qnl/fab-notion/internal/tracker"
)

// Components groups the stockroom's concurrent loops and their shared
// plumbing.
type Components struct {
	// Client talks to the remote record store.
	Client *notion.Client

	// Queue carries decoded scans from the ingestor to the tracker.
	Queue *scan.Queue

	// Ingestor reads and decodes operator input.
	Ingestor *scan.Ingestor

	// Tracker applies stock adjustments.
	Tracker *tracker.Tracker

	// Backfiller renders and uploads missing barcodes.
	Backfiller *backfill.Backfiller

	// Heartbeat refreshes the status display.
	Heartbeat *heartbeat.Heartbeat
}
