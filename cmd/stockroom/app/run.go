package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	stockroom "github.com/qnl/fab-notion/internal/app"
	"github.com/qnl/fab-notion/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stockroom daemon",
	Long: `Run the stockroom daemon against the scanner on standard input.

The daemon requires a configuration file (--config) that specifies:
- Credentials for the remote store (session token or email/password)
- The status record and supplies collection identifiers
- An optional display timezone for the status heartbeat`,
	RunE: runDaemon,
}

// defaultGracefulTimeout bounds how long shutdown waits for an in-flight
// store call to finish.
const defaultGracefulTimeout = 10 * time.Second

func init() {
	runCmd.Flags().String("config", "", "Path to configuration file (JSON format, required)")
	runCmd.Flags().String("barcode-dir", "barcodes", "Directory to keep rendered barcode images in")
	runCmd.Flags().String("api-url", "", "Override the remote store endpoint (for testing)")
	runCmd.Flags().Duration("interval", 0, "Override the backfill and heartbeat interval")

	for _, flag := range []string{"config", "barcode-dir", "api-url", "interval"} {
		if err := viper.BindPFlag(flag, runCmd.Flags().Lookup(flag)); err != nil {
			slog.Error("Error binding flag", "flag", flag, "error", err)
			os.Exit(1)
		}
	}

	if err := runCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Error marking config flag as required", "error", err)
		os.Exit(1)
	}
}

func runDaemon(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"status", cfg.Status,
		"supplies", cfg.Supplies)

	application, err := stockroom.Build(ctx, cfg, stockroom.Settings{
		ConfigPath: configPath,
		BarcodeDir: viper.GetString("barcode-dir"),
		BaseURL:    viper.GetString("api-url"),
		Interval:   viper.GetDuration("interval"),
		Input:      os.Stdin,
	})
	if err != nil {
		return err
	}

	application.Start(ctx)

	// Wait for interrupt signal to shut the loops down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := application.Stop(defaultGracefulTimeout); err != nil {
		slog.Error("Forced shutdown", "error", err)
		return err
	}
	return nil
}
