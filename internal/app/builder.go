package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/qnl/fab-notion/internal/backfill"
	"github.com/qnl/fab-notion/internal/config"
	"github.com/qnl/fab-notion/internal/heartbeat"
	"github.com/qnl/fab-notion/internal/notion"
	"github.com/qnl/fab-notion/internal/scan"
	"github.com/qnl/fab-notion/internal/tracker"
)

// Settings carries the operational knobs the command line provides on
// top of the config file.
type Settings struct {
	// ConfigPath is where the config file lives, for token write-back.
	ConfigPath string

	// BarcodeDir is the local directory rendered barcode images go to.
	BarcodeDir string

	// BaseURL overrides the remote store endpoint. Empty selects the
	// production endpoint.
	BaseURL string

	// Interval overrides the backfill and heartbeat cycle interval.
	// Zero keeps the per-loop defaults.
	Interval time.Duration

	// Input is the operator scan stream, normally stdin.
	Input io.Reader
}

// Build authenticates against the remote store and assembles all
// components sharing one queue and one record lock.
func Build(ctx context.Context, cfg *config.Config, settings Settings) (*App, error) {
	client := notion.NewClient(settings.BaseURL, notion.WithToken(cfg.Token))

	if err := Authenticate(ctx, client, cfg, settings.ConfigPath); err != nil {
		return nil, err
	}

	status, err := client.GetRecord(ctx, cfg.StatusID())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status record: %w", err)
	}

	if err := os.MkdirAll(settings.BarcodeDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create barcode directory: %w", err)
	}

	// One lock serializes every record mutation across all loops.
	mu := &sync.Mutex{}
	queue := scan.NewQueue()

	var backfillOpts []backfill.Option
	var heartbeatOpts []heartbeat.Option
	if settings.Interval > 0 {
		backfillOpts = append(backfillOpts, backfill.WithInterval(settings.Interval))
		heartbeatOpts = append(heartbeatOpts, heartbeat.WithInterval(settings.Interval))
	}

	components := &Components{
		Client:     client,
		Queue:      queue,
		Ingestor:   scan.NewIngestor(queue, settings.Input),
		Tracker:    tracker.New(queue, client, mu),
		Backfiller: backfill.New(client, mu, cfg.SuppliesID(), settings.BarcodeDir, backfillOpts...),
		Heartbeat:  heartbeat.New(client, mu, status, cfg.Location(), heartbeatOpts...),
	}

	return &App{components: components}, nil
}

// Authenticate verifies the configured session token. On a 401/403 it
// falls back to password login exactly once and persists the fresh token
// back to the config file; any other failure surfaces unchanged.
func Authenticate(ctx context.Context, client *notion.Client, cfg *config.Config, configPath string) error {
	if cfg.Token != "" {
		err := client.VerifyToken(ctx)
		if err == nil {
			slog.Info("Logged in with token")
			return nil
		}
		if !notion.IsAuthError(err) {
			return err
		}
		slog.Warn("Session token rejected, falling back to password login")
	}

	if cfg.Email == "" || cfg.Password == "" {
		return fmt.Errorf("no valid token and no password credentials configured")
	}

	token, err := client.LoginWithEmail(ctx, cfg.Email, cfg.Password)
	if err != nil {
		return err
	}

	cfg.Token = token
	if err := cfg.Save(configPath); err != nil {
		// The session itself works; losing the write-back only costs a
		// fresh login on the next start.
		slog.Warn("Failed to persist refreshed token", "error", err)
		return nil
	}
	slog.Info("Updated token")
	return nil
}
