// Package timing parses the elapsed-time marker that supervised binaries
// embed in their error stream.
//
// A child that wants elapsed-time logging writes a payload of the form
// "<timestamp><delimiter><message>" to stderr, where the timestamp is a
// decimal number followed by an optional alphabetic unit suffix.
package timing

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Delimiter is the private token separating the timestamp from the
// diagnostic message.
const Delimiter = "+~+~+"

// DefaultUnit applies when a timestamp carries no alphabetic suffix.
const DefaultUnit = "ms"

// Record is a parsed duration measurement.
type Record struct {
	Magnitude float64
	Unit      string
}

// String renders the duration with two decimal places followed by its unit.
func (r Record) String() string {
	return strconv.FormatFloat(r.Magnitude, 'f', 2, 64) + r.Unit
}

// Entry is the outcome of parsing one stderr payload.
type Entry struct {
	// Duration is the extracted measurement, nil when the payload carried
	// none or the timestamp was malformed.
	Duration *Record
	// Message is the diagnostic segment after the delimiter, if any.
	Message string
	// Raw holds the first segment whenever no duration could be extracted
	// from it. Callers log it as a plain error line.
	Raw string
}

// Parse splits a payload on the delimiter. Exactly two parts yield a
// duration plus a diagnostic message; any other part count leaves the first
// segment uninterpreted.
func Parse(payload string) Entry {
	parts := strings.Split(payload, Delimiter)
	if len(parts) != 2 {
		return Entry{Raw: parts[0]}
	}
	rec, err := parseStamp(parts[0])
	if err != nil {
		return Entry{Raw: parts[0], Message: parts[1]}
	}
	return Entry{Duration: rec, Message: parts[1]}
}

// parseStamp reads "<digits>[.<digits>][<unit>]" into a Record. The unit
// must be purely alphabetic; the micro sign counts as alphabetic.
func parseStamp(s string) (*Record, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty timestamp")
	}
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	num := s[:i]
	if num == "" {
		return nil, fmt.Errorf("timestamp %q has no leading digits", s)
	}
	magnitude, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil, fmt.Errorf("parse magnitude %q: %w", num, err)
	}
	unit := s[i:]
	if unit == "" {
		unit = DefaultUnit
	} else {
		for _, r := range unit {
			if !unicode.IsLetter(r) {
				return nil, fmt.Errorf("unit %q is not alphabetic", unit)
			}
		}
	}
	return &Record{Magnitude: magnitude, Unit: unit}, nil
}
