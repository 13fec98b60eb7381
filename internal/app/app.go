// Package app assembles the stockroom daemon and manages its lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// App runs the four stockroom loops: scan ingestion, stock tracking,
// barcode backfill, and the status heartbeat.
type App struct {
	components *Components

	// Lifecycle management
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Components returns the assembled components, useful for tests.
func (a *App) Components() *Components {
	return a.components
}

// Start launches all loops in the background.
func (a *App) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel

	slog.Info("Starting stockroom loops")

	a.wg.Add(4)
	go func() {
		defer a.wg.Done()
		a.components.Ingestor.Run(runCtx)
		// Input EOF stops only the ingestor; the other loops keep the
		// daemon useful until it is killed.
		slog.Info("Scan input closed")
	}()
	go func() {
		defer a.wg.Done()
		a.components.Tracker.Run(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.components.Backfiller.Run(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.components.Heartbeat.Run(runCtx)
	}()
}

// Stop cancels the loops and waits for them to finish, up to timeout.
// Closing the queue unblocks the tracker; a loop mid-cycle finishes its
// current remote call first.
func (a *App) Stop(timeout time.Duration) error {
	slog.Info("Shutting down...")

	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.components.Queue.Close()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Shutdown complete")
		return nil
	case <-time.After(timeout):
		// The ingestor may still be blocked on a stdin read; the
		// process is about to exit anyway.
		return fmt.Errorf("loops did not stop within %s", timeout)
	}
}
