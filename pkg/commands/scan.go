// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cobaltcore-dev/diskprobe/pkg/producers/diskhealthmetrics"
)

var (
	scanReplayDir string
	scanNoBar     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [devices...]",
	Short: "Identify disks once and print their SMART reports as JSON",
	Long: "Identify the given devices, or every disk when none are given, read SMART data once " +
		"and print one JSON report per identified device.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := diskhealthmetrics.DefaultConfig()
		cfg.ReplayDir = getEnv("REPLAY_DIR", scanReplayDir)
		cfg.NodeName = getEnv("NODE_NAME", "")
		cfg.InstanceID = getEnv("INSTANCE_ID", "")
		if len(args) > 0 {
			cfg.Disks = args
		}
		return runScan(cmd.Context(), cfg, cmd.OutOrStdout(), !scanNoBar)
	},
}

func runScan(ctx context.Context, cfg diskhealthmetrics.DiskHealthMetricsConfig, out io.Writer, withBar bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var opts []diskhealthmetrics.InventoryOption
	if withBar {
		bar := progressbar.Default(-1, "identifying disks")
		defer bar.Finish()
		opts = append(opts, diskhealthmetrics.WithProgress(func(string) { _ = bar.Add(1) }))
	}

	inv := diskhealthmetrics.NewInventory(cfg, opts...)
	defer inv.Close()

	added, _, err := inv.Rescan(ctx)
	if err != nil {
		return fmt.Errorf("error discovering devices: %w", err)
	}
	log.Info().Strs("devices", added).Msg("scan_identified")

	reports := inv.PollAll(ctx)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("error encoding reports: %w", err)
	}
	return nil
}

func init() {
	scanCmd.Flags().StringVar(&scanReplayDir, "replay-dir", "", "Read recorded YAML fixtures from this directory instead of real devices")
	scanCmd.Flags().BoolVar(&scanNoBar, "no-progress", !isTerminal(os.Stderr), "Do not draw a progress bar")
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
