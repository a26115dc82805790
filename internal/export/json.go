package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONWriter writes reports as a json array.
type JSONWriter struct {
	output io.Writer
	indent string
}

type JSONWriterOption func(w *JSONWriter)

// WithIndent pretty-prints the output using indent for each level.
func WithIndent(indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = indent
	}
}

func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) JSONWriter {
	w := JSONWriter{output: output}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

// Write encodes values, a nil slice is written as an empty array.
func (w JSONWriter) Write(values []any) error {
	if values == nil {
		values = []any{}
	}
	enc := json.NewEncoder(w.output)
	enc.SetEscapeHTML(false)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}
	err := enc.Encode(values)
	if err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}
