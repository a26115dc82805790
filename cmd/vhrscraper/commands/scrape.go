package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"vhrscraper/internal/db"
	"vhrscraper/internal/export"
	"vhrscraper/internal/service"

	"github.com/spf13/cobra"
)

const (
	formatCSV      = "csv"
	formatJSON     = "json"
	formatMarkdown = "md"
)

type scrapeFlags struct {
	vins        []string
	file        string
	output      string
	format      string
	appendCSV   bool
	api         bool
	full        bool
	store       bool
	notify      bool
	concurrency int
}

func (f *scrapeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&f.vins, "vin", nil, "A vin to scrape, may be repeated or comma separated.")
	flags.StringVarP(&f.file, "file", "f", "", "A file with one vin per line, blank lines and lines starting with # are skipped.")
	flags.StringVarP(&f.output, "output", "o", "", "The output file name, relative names are placed in the output directory.")
	flags.StringVar(&f.format, "format", formatCSV, "The output format: csv, json or md.")
	flags.BoolVar(&f.appendCSV, "append", false, "Append to an existing csv file instead of replacing it.")
	flags.BoolVar(&f.api, "api", false, "Fetch through the json api with the stored token instead of the report page.")
	flags.BoolVar(&f.full, "full", false, "Extract the detailed report.")
	flags.BoolVar(&f.store, "db", false, "Save every report to the report store.")
	flags.BoolVar(&f.notify, "notify", false, "E-mail the run summary when smtp is configured.")
	flags.IntVar(&f.concurrency, "concurrency", 0, "How many vins to scrape at once, defaults to the configured value.")
}

func (f *scrapeFlags) validate() error {
	switch f.format {
	case formatCSV, formatJSON, formatMarkdown:
	default:
		return fmt.Errorf("unknown format %q, expected csv, json or md", f.format)
	}
	if f.appendCSV && f.format != formatCSV {
		return errors.New("--append only applies to csv output")
	}
	if f.concurrency < 0 {
		return errors.New("--concurrency must not be negative")
	}
	return nil
}

// readVins returns the vins given as flags followed by the ones in file.
func readVins(flagged []string, file string) ([]string, error) {
	var vins []string
	for _, v := range flagged {
		v = strings.TrimSpace(v)
		if v != "" {
			vins = append(vins, v)
		}
	}
	if file == "" {
		return vins, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		vins = append(vins, line)
	}
	return vins, scanner.Err()
}

var scrapeOpts scrapeFlags

func init() {
	scrapeOpts.register(scrapeCmd)
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--vin <vin>...] [--file <vins.txt>]",
	Short: "Scrapes vehicle history reports and writes them to the output directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runScrape(cmd.Context(), app, scrapeOpts, cmd.OutOrStdout())
		return err
	},
}

func runScrape(ctx context.Context, a *application, opts scrapeFlags, out io.Writer) (service.Summary, error) {
	err := opts.validate()
	if err != nil {
		return service.Summary{}, err
	}
	vins, err := readVins(opts.vins, opts.file)
	if err != nil {
		return service.Summary{}, fmt.Errorf("read vins: %w", err)
	}
	if len(vins) == 0 {
		return service.Summary{}, errors.New("no vins given, use --vin or --file")
	}

	backend, err := a.backend()
	if err != nil {
		return service.Summary{}, err
	}
	if opts.api {
		err = a.login(ctx, backend.Holder)
		if err != nil {
			return service.Summary{}, err
		}
	}

	svc := service.NewService(backend, a.time, a.tel)
	runOpts := service.Options{
		API:         opts.api,
		Full:        opts.full,
		Concurrency: opts.concurrency,
	}
	if runOpts.Concurrency == 0 {
		runOpts.Concurrency = a.config.Concurrency
	}
	runOpts.MinDelay, runOpts.MaxDelay = a.config.Delays()

	if !svc.Authenticated(runOpts) {
		slog.Warn("no authenticated session, reports will fail until you run `vhrscraper login`")
	}

	progress := 0
	summary, runErr := svc.Run(ctx, vins, runOpts, func(ctx context.Context, result service.Result) error {
		progress++
		slog.Info(
			"scraped",
			"n", fmt.Sprintf("%d/%d", progress, len(vins)),
			"vin", result.Report.VIN,
			"status", export.Status(result.Report),
		)
		return nil
	})
	if len(summary.Results) == 0 {
		return summary, runErr
	}

	path, err := writeResults(a, opts, summary)
	if err != nil {
		return summary, errors.Join(runErr, err)
	}
	slog.Info("wrote reports", "path", path, "format", opts.format)

	if opts.store {
		err = saveResults(ctx, a, summary)
		if err != nil {
			return summary, errors.Join(runErr, err)
		}
	}

	export.RenderSummary(out, summary.Reports())
	fmt.Fprintf(out, "run %s finished in %s\n", summary.RunID, summary.Duration.Round(time.Millisecond))

	if opts.notify {
		err = notifyResults(ctx, a, summary, path)
		if err != nil {
			return summary, errors.Join(runErr, err)
		}
	}
	return summary, runErr
}

// saveResults writes every report of the run in one transaction.
func saveResults(ctx context.Context, a *application, summary service.Summary) error {
	sqlite, err := db.Open(ctx, a.config.Database.DSN())
	if err != nil {
		return err
	}
	defer sqlite.Close()

	makeTx := db.NewMakeTx(sqlite)
	tx, discard, commit, err := makeTx(ctx)
	if err != nil {
		return err
	}
	defer discard()

	scrapedAt := a.time.Now()
	for _, result := range summary.Results {
		params, err := db.ReportParams(summary.RunID, result.Report, result.Value(), result.Full != nil, scrapedAt)
		if err != nil {
			return err
		}
		_, err = tx.InsertReport(ctx, params)
		if err != nil {
			return fmt.Errorf("save %s: %w", result.Report.VIN, err)
		}
	}
	return commit()
}
