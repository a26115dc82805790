package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"vhrscraper/internal/export"
	"vhrscraper/internal/notify"
	"vhrscraper/internal/report"
	"vhrscraper/internal/service"
)

// outputPath places name (or the timestamped default) in dir with the
// extension of format.
func outputPath(dir, name, format string, now time.Time) string {
	if format == formatCSV {
		return export.ResolvePath(dir, name, now)
	}
	ext := "." + format
	if name == "" {
		name = strings.TrimSuffix(export.DefaultFileName(now), ".csv")
	}
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func create(path string) (*os.File, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, err
	}
	return os.Create(path)
}

// writeResults exports a run in the requested format and returns the file
// written.
func writeResults(a *application, opts scrapeFlags, summary service.Summary) (string, error) {
	now := a.time.Now()
	path := outputPath(a.config.OutputDir, opts.output, opts.format, now)

	if opts.format == formatCSV {
		columns := report.Columns
		if opts.full {
			columns = report.FullColumns
		}
		w := export.CSVWriter{Path: path, Columns: columns, Append: opts.appendCSV}
		return path, w.Write(export.Rows(summary.Results))
	}

	f, err := create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	switch opts.format {
	case formatJSON:
		values := make([]any, len(summary.Results))
		for i, result := range summary.Results {
			values[i] = result.Value()
		}
		err = export.NewJSONWriter(f, export.WithIndent("  ")).Write(values)
	case formatMarkdown:
		err = export.NewMarkdownWriter(f).Write(summary.RunID, now, summary.Reports())
	}
	if err != nil {
		return "", err
	}
	return path, f.Close()
}

func notifyResults(ctx context.Context, a *application, summary service.Summary, attachment string) error {
	if !a.config.Notify.Enabled() {
		slog.Warn("--notify given but no smtp server is configured, skipping")
		return nil
	}

	body := &strings.Builder{}
	err := export.NewMarkdownWriter(body).Write(summary.RunID, a.time.Now(), summary.Reports())
	if err != nil {
		return err
	}

	mailer := notify.NewMailer(a.config.Notify, a.tel)
	err = mailer.SendSummary(ctx, summary, body.String(), attachment)
	if err != nil {
		return err
	}
	slog.Info("sent run summary", "to", a.config.Notify.To)
	return nil
}
