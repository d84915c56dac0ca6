package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statsTimeout time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute the dashboard statistics once and print them as JSON",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().DurationVar(&statsTimeout, "timeout", 5*time.Minute, "overall time limit")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statsTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	overview, err := a.service.Overview(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(overview)
}
