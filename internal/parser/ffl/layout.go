// Package ffl parses lines of the ATF FFLeZCheck export into record.Record
// values.
//
// Two layouts are supported:
//
//   - "pipe": a delimited layout, one record per line, with the ten columns
//     license_number|business_name|premise_street|premise_city|premise_state|
//     premise_zip|license_type|issue_date|expiration_date|status
//     and ISO YYYY-MM-DD dates.
//   - "atf": the fixed-width layout published by FFLeZCheck, with the full
//     premise/mailing address set, phone and MMDDYYYY LOA dates.
//
// Parsing is pure: the same line always yields the same Record. Blank lines
// return ErrBlankLine so callers can skip them without counting a failure.
package ffl

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/golang-sql/civil"
	"golang.org/x/text/unicode/norm"

	"ffldb/internal/record"
)

// Layout turns one source line into a Record.
type Layout interface {
	// Name identifies the layout in logs and errors.
	Name() string
	// Parse returns the record for line, ErrBlankLine for blank lines, or a
	// *MalformedRecordError / *InvalidDateError.
	Parse(line string) (record.Record, error)
}

// Layout names accepted by New.
const (
	LayoutPipe = "pipe"
	LayoutATF  = "atf"
)

// New returns the layout registered under name. delimiter only applies to
// the pipe layout; zero selects '|'.
func New(name string, delimiter rune) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LayoutPipe:
		return NewDelimited(delimiter), nil
	case LayoutATF:
		return FixedWidth{}, nil
	default:
		return nil, fmt.Errorf("ffl: unknown layout %q", name)
	}
}

// Layouts lists the supported layout names.
func Layouts() []string { return []string{LayoutPipe, LayoutATF} }

// licenseSegments are the widths of R-DD-CCC-TT-EE-SSSSS.
var licenseSegments = [...]int{1, 2, 3, 2, 2, 5}

// splitLicenseNumber validates a dashed license number and fills the segment
// fields of rec.
func splitLicenseNumber(layout, s string, rec *record.Record) error {
	if s == "" {
		return malformed(layout, "missing license number")
	}
	parts := strings.Split(s, "-")
	if len(parts) != len(licenseSegments) {
		return malformed(layout, "license number %q: want %d segments, got %d", s, len(licenseSegments), len(parts))
	}
	for i, p := range parts {
		if len(p) != licenseSegments[i] || !isAlnum(p) {
			return malformed(layout, "license number %q: segment %d must be %d alphanumeric characters", s, i+1, licenseSegments[i])
		}
	}
	rec.LicenseNumber = s
	rec.Region = parts[0]
	rec.District = parts[1]
	rec.County = parts[2]
	rec.LicenseType = parts[3]
	rec.ExpirationCode = parts[4]
	rec.Sequence = parts[5]
	return nil
}

func isAlnum(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsDigit(r) || unicode.IsLetter(r)) {
			return false
		}
	}
	return true
}

// clean trims surrounding whitespace and puts the text in NFC so that the
// same name typed with combining marks internalizes to one lookup row.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return norm.NFC.String(s)
}

// parseISODate parses YYYY-MM-DD; blank input yields nil.
func parseISODate(field, raw string) (*civil.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, &InvalidDateError{Field: field, Value: raw, Err: err}
	}
	return &d, nil
}

// parseMMDDYYYY parses the FFLeZCheck packed date form. Blank and all-zero
// values mean "not set".
func parseMMDDYYYY(field, raw string) (*civil.Date, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.Trim(trimmed, "0") == "" {
		return nil, nil
	}
	if len(trimmed) != 8 || strings.IndexFunc(trimmed, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return nil, &InvalidDateError{Field: field, Value: trimmed}
	}
	d, err := civil.ParseDate(trimmed[4:8] + "-" + trimmed[0:2] + "-" + trimmed[2:4])
	if err != nil {
		return nil, &InvalidDateError{Field: field, Value: trimmed, Err: err}
	}
	return &d, nil
}

// formatZip renders a 9-digit zip as NNNNN-NNNN; shorter values pass through.
func formatZip(s string) string {
	if len(s) > 5 && !strings.Contains(s, "-") {
		return s[:5] + "-" + s[5:]
	}
	return s
}
