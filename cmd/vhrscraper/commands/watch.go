package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"

	"github.com/spf13/cobra"
)

const report_watch_skipped = "watch.skipped"

var (
	watchOpts scrapeFlags
	watchSpec *string
	watchNow  *bool
)

func init() {
	watchOpts.register(watchCmd)
	watchSpec = watchCmd.Flags().String("cron", "0 6 * * *", "When to scrape, in cron syntax and the configured timezone.")
	watchNow = watchCmd.Flags().Bool("now", false, "Also scrape once right away.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch --cron <spec> [scrape flags]",
	Short: "Re-runs a scrape on a schedule until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := watchOpts.validate()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		telemetry.InstrumentPerfStats(ctx, app.tel)

		var running sync.Mutex
		scrape := func() {
			if !running.TryLock() {
				app.tel.ReportWarning(report_watch_skipped, "previous scrape still running")
				return
			}
			defer running.Unlock()

			_, err := runScrape(ctx, app, watchOpts, cmd.OutOrStdout())
			if err != nil {
				slog.Error("scheduled scrape failed", "err", err)
			}
		}

		return watch(ctx, chrono.NewStandardCron(app.time, app.tel), *watchSpec, *watchNow, scrape)
	},
}

type scheduler interface {
	chrono.CronAPI
	Stop(ctx context.Context)
}

// watch schedules scrape on spec until ctx is done, then waits up to a
// minute for running scrapes, the one started by now included.
func watch(ctx context.Context, cron scheduler, spec string, now bool, scrape func()) error {
	err := cron.Cron(spec, scrape)
	if err != nil {
		return err
	}
	slog.Info("watching", "cron", spec)

	var initial sync.WaitGroup
	if now {
		initial.Add(1)
		go func() {
			defer initial.Done()
			scrape()
		}()
	}

	<-ctx.Done()
	slog.Info("stopping, waiting for the running scrape")

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cron.Stop(stopCtx)

	done := make(chan struct{})
	go func() {
		initial.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-stopCtx.Done():
	}
	return nil
}
