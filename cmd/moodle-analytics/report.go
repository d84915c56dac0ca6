package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/pkg/client"
)

var (
	reportServer  string
	reportTimeout time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the statistics and top courses of a running server",
	Long: `Fetch the dashboard statistics from a running moodle-analytics server.

Examples:
  moodle-analytics report
  moodle-analytics report --server http://analytics.internal:8080`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportServer, "server", "http://localhost:8080", "server base URL")
	reportCmd.Flags().DurationVar(&reportTimeout, "timeout", 5*time.Minute, "request timeout")
}

func runReport(cmd *cobra.Command, args []string) error {
	c := client.NewClient(reportServer, client.WithTimeout(reportTimeout))

	overview, err := c.Statistics(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch statistics: %w", err)
	}

	printOverview(os.Stdout, overview)
	return nil
}

func printOverview(out io.Writer, o *models.Overview) {
	if o.SiteName != "" {
		fmt.Fprintf(out, "%s (generated %s)\n\n", o.SiteName, o.GeneratedAt.Format(time.RFC3339))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Users\t%s\n", o.Statistics.TotalUsers)
	fmt.Fprintf(w, "Active users\t%s\n", o.Statistics.ActiveUsers)
	fmt.Fprintf(w, "Courses\t%s\n", o.Statistics.TotalCourses)
	fmt.Fprintf(w, "Categories\t%s\n", o.Statistics.TotalCategories)
	fmt.Fprintf(w, "Teachers\t%d\n", o.TotalTeachers)
	fmt.Fprintf(w, "%s courses\t%d (%d students, %d teachers)\n",
		o.ShortCourses.Prefix, o.ShortCourses.TotalCourses, o.ShortCourses.TotalStudents, o.ShortCourses.TotalTeachers)
	w.Flush()

	if len(o.TopCourses) == 0 {
		return
	}

	fmt.Fprintln(out, "\nTop courses")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tCOURSE\tCATEGORY\tSTUDENTS\tTEACHER")
	for _, c := range o.TopCourses {
		teacher := "-"
		if c.TeacherName != nil {
			teacher = *c.TeacherName
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", c.Rank, c.FullName, c.CategoryName, c.EnrolledStudentCount, teacher)
	}
	w.Flush()
}
