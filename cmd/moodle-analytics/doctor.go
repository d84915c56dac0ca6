package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/moodle-analytics/internal/services"
)

var (
	doctorTimeout time.Duration
	doctorJSON    bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Probe the Moodle site, reporting database and Redis",
	Long: `Run diagnostic checks against every configured dependency:

  1. Moodle web service: site info and the availability of required functions
  2. Reporting database (when REPORTING_DSN is set): server version and Moodle tables
  3. Redis (when REDIS_ADDRESS is set): server version and recorded snapshots

Exits with a non-zero status when any check fails.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 30*time.Second, "time limit for all checks")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "print the report as JSON")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	reports := a.registry.DiagnoseAll(ctx)

	if doctorJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		printReports(os.Stdout, reports)
	}

	failed := 0
	for _, report := range reports {
		if !report.Healthy {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(reports))
	}
	return nil
}

func printReports(out io.Writer, reports []services.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tLATENCY\tDETAIL")
	for _, report := range reports {
		status := "ok"
		detail := ""
		if !report.Healthy {
			status = "FAIL"
			detail = report.Error
			if report.Cause != "" {
				detail = report.Cause + ": " + detail
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", report.Name, status, report.LatencyMS, detail)

		keys := make([]string, 0, len(report.Details))
		for k := range report.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "\t\t\t%s=%s\n", k, report.Details[k])
		}
	}
	w.Flush()
}
