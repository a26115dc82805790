package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// bom lets spreadsheet software detect utf-8.
const bom = "\ufeff"

const (
	DefaultFilePrefix = "carfax_reports_"
	fileTimeLayout    = "20060102_150405"
)

var (
	ErrNoRows         = errors.New("no reports to export")
	ErrHeaderMismatch = errors.New("existing csv header does not match the report columns")
)

// DefaultFileName is the timestamped name used when none is given.
func DefaultFileName(now time.Time) string {
	return DefaultFilePrefix + now.Format(fileTimeLayout) + ".csv"
}

// ResolvePath joins name onto dir, falling back to the default name and
// adding a .csv extension when it is missing.
func ResolvePath(dir, name string, now time.Time) string {
	if name == "" {
		name = DefaultFileName(now)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// Rows collects the csv row of every record.
func Rows[T interface{ Row() []string }](records []T) [][]string {
	out := make([][]string, len(records))
	for i, r := range records {
		out[i] = r.Row()
	}
	return out
}

// CSVWriter writes report rows to a file. The header (prefixed with a byte
// order mark) is only written when the file is new or empty.
type CSVWriter struct {
	Path    string
	Columns []string
	// Append keeps existing rows instead of truncating the file.
	Append bool
}

func (w CSVWriter) Write(rows [][]string) error {
	if len(rows) == 0 {
		return ErrNoRows
	}

	err := os.MkdirAll(filepath.Dir(w.Path), 0755)
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}

	if w.Append {
		err = w.checkHeader()
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if w.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(w.Path, flags, 0644)
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}

	if info.Size() == 0 {
		_, err = f.WriteString(bom)
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}

	out := csv.NewWriter(f)
	if info.Size() == 0 {
		err = out.Write(w.Columns)
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}
	err = out.WriteAll(rows)
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return f.Close()
}

// checkHeader refuses to append to a file whose header has other columns,
// a missing or empty file passes.
func (w CSVWriter) checkHeader() error {
	f, err := os.Open(w.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header of %s: %w", w.Path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}
	if !slices.Equal(header, w.Columns) {
		return fmt.Errorf("%w: %s has %d columns, expected %d", ErrHeaderMismatch, w.Path, len(header), len(w.Columns))
	}
	return nil
}
