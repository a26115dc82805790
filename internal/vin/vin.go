// Package vin validates vehicle identification numbers.
package vin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Length is the number of characters in a VIN.
const Length = 17

var (
	ErrInvalidLength    = errors.New("vin must be 17 characters")
	ErrInvalidCharacter = errors.New("vin must not contain I, O or Q")
)

// ValidationError describes why a candidate VIN was rejected.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Wrapped)
}

func (e *ValidationError) Unwrap() error {
	return e.Wrapped
}

// Normalize trims surrounding whitespace and uppercases.
func Normalize(candidate string) string {
	return strings.ToUpper(strings.TrimSpace(candidate))
}

// Validate returns the normalized VIN, or a *ValidationError.
//
// Only the length and the I/O/Q exclusion are checked; the check digit is not.
func Validate(candidate string) (string, error) {
	normalized := Normalize(candidate)
	if utf8.RuneCountInString(normalized) != Length {
		return "", &ValidationError{Field: "vin", Value: candidate, Wrapped: ErrInvalidLength}
	}
	if strings.ContainsAny(normalized, "IOQ") {
		return "", &ValidationError{Field: "vin", Value: candidate, Wrapped: ErrInvalidCharacter}
	}
	return normalized, nil
}

// Valid is Validate without the details.
func Valid(candidate string) bool {
	_, err := Validate(candidate)
	return err == nil
}

// ReadList reads one VIN per line. Blank lines, lines starting with # and
// lines that are not 17 characters long are skipped. Kept lines are normalized.
func ReadList(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := Normalize(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if utf8.RuneCountInString(line) != Length {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vin list: %w", err)
	}
	return out, nil
}
