// Package app provides the entry point for the stockroom daemon.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/qnl/fab-notion/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "stockroom",
	DisableAutoGenTag: true,
	Short:             "Stockroom inventory barcode daemon",
	Long: `Stockroom keeps a collaborative inventory database in sync with a
hardware barcode scanner: scans adjust stock counts, items without a
barcode get one rendered and uploaded, and a status record shows the
daemon's last-seen time.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates a new root command for the stockroom daemon.
func NewRootCmd() *cobra.Command {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
				return
			}
			fmt.Println(string(output))
		} else {
			slog.Info("stockroom version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
