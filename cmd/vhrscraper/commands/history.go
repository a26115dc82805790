package commands

import (
	"context"
	"fmt"
	"vhrscraper/internal/db"
	"vhrscraper/internal/export"
	"vhrscraper/internal/report"

	"github.com/spf13/cobra"
)

var (
	historyLimit     *int64
	historyRun       *string
	historyDeleteRun *bool
	historyJSON      *bool
)

func init() {
	historyLimit = historyCmd.Flags().Int64("limit", 20, "How many of the latest reports to list when no vin is given.")
	historyRun = historyCmd.Flags().String("run", "", "List the reports of a single run.")
	historyDeleteRun = historyCmd.Flags().Bool("delete", false, "Delete the run given with --run instead of listing it.")
	historyJSON = historyCmd.Flags().Bool("json", false, "Print the stored reports as json.")
	rootCmd.AddCommand(historyCmd)
}

func queryHistory(ctx context.Context, q *db.Queries, vin, runId string, limit int64) ([]db.Report, error) {
	switch {
	case vin != "":
		return q.ReportsForVin(ctx, vin)
	case runId != "":
		return q.ReportsForRun(ctx, runId)
	default:
		return q.LatestReports(ctx, limit)
	}
}

var historyCmd = &cobra.Command{
	Use:   "history [vin] [--run <id> [--delete]] [--limit n] [--json]",
	Short: "Lists reports saved by `scrape --db`.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		sqlite, err := db.Open(ctx, app.config.Database.DSN())
		if err != nil {
			return err
		}
		defer sqlite.Close()
		q := db.New(sqlite)

		if *historyDeleteRun {
			if *historyRun == "" {
				return fmt.Errorf("--delete requires --run")
			}
			deleted, err := q.DeleteRun(ctx, *historyRun)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "deleted %d reports of run %s\n", deleted, *historyRun)
			return nil
		}

		vin := ""
		if len(args) > 0 {
			vin = args[0]
		}
		rows, err := queryHistory(ctx, q, vin, *historyRun, *historyLimit)
		if err != nil {
			return err
		}

		if *historyJSON {
			values := make([]any, len(rows))
			for i, row := range rows {
				if row.Detailed {
					values[i], err = row.FullReport()
				} else {
					values[i], err = row.VehicleReport()
				}
				if err != nil {
					return err
				}
			}
			return export.NewJSONWriter(out, export.WithIndent("  ")).Write(values)
		}

		reports := make([]report.VehicleReport, len(rows))
		for i, row := range rows {
			reports[i], err = row.VehicleReport()
			if err != nil {
				return err
			}
		}
		export.RenderSummary(out, reports)
		return nil
	},
}
