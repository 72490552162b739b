package ffl

import (
	"strings"

	"ffldb/internal/record"
)

// span is a half-open [start, end) rune range of the fixed-width layout.
type span struct{ start, end int }

// Column positions of the FFLeZCheck download layout.
var (
	colLicense       = span{0, 15}
	colLicenseName   = span{15, 65}
	colBusinessName  = span{65, 115}
	colPremiseStreet = span{115, 165}
	colPremiseCity   = span{165, 195}
	colPremiseState  = span{195, 197}
	colPremiseZip    = span{197, 206}
	colMailingStreet = span{206, 256}
	colMailingCity   = span{256, 286}
	colMailingState  = span{286, 288}
	colMailingZip    = span{288, 297}
	colPhone         = span{297, 307}
	colIssueDate     = span{307, 315}
	colExpireDate    = span{315, 323}
)

// minFixedWidth is the shortest acceptable line: everything through the
// premise state must be present. Exports with trailing whitespace stripped
// may cut off the blank columns after it.
const minFixedWidth = 197

// FixedWidth parses the positional FFLeZCheck export. Positions are counted
// in runes so decoded non-ASCII names do not shift later columns.
type FixedWidth struct{}

func (FixedWidth) Name() string { return LayoutATF }

func (FixedWidth) Parse(line string) (record.Record, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return record.Record{}, ErrBlankLine
	}
	runes := []rune(line)
	if len(runes) < minFixedWidth {
		return record.Record{}, malformed(LayoutATF, "line is %d characters, want at least %d", len(runes), minFixedWidth)
	}
	col := func(s span) string {
		if s.start >= len(runes) {
			return ""
		}
		end := min(s.end, len(runes))
		return string(runes[s.start:end])
	}

	var rec record.Record
	raw := strings.TrimSpace(col(colLicense))
	if raw == "" {
		return record.Record{}, malformed(LayoutATF, "missing license number")
	}
	if len(raw) != colLicense.end-colLicense.start {
		return record.Record{}, malformed(LayoutATF, "license number %q: want 15 characters", raw)
	}
	dashed := raw[0:1] + "-" + raw[1:3] + "-" + raw[3:6] + "-" + raw[6:8] + "-" + raw[8:10] + "-" + raw[10:15]
	if err := splitLicenseNumber(LayoutATF, dashed, &rec); err != nil {
		return record.Record{}, err
	}

	rec.LicenseName = clean(col(colLicenseName))
	rec.BusinessName = clean(col(colBusinessName))
	rec.PremiseStreet = clean(col(colPremiseStreet))
	rec.PremiseCity = clean(col(colPremiseCity))
	rec.PremiseState = clean(col(colPremiseState))
	rec.PremiseZip = formatZip(clean(col(colPremiseZip)))
	rec.MailingStreet = clean(col(colMailingStreet))
	rec.MailingCity = clean(col(colMailingCity))
	rec.MailingState = clean(col(colMailingState))
	rec.MailingZip = formatZip(clean(col(colMailingZip)))
	rec.Phone = formatPhone(clean(col(colPhone)))

	var err error
	if rec.IssueDate, err = parseMMDDYYYY("issue_date", col(colIssueDate)); err != nil {
		return record.Record{}, err
	}
	if rec.ExpirationDate, err = parseMMDDYYYY("expiration_date", col(colExpireDate)); err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

// formatPhone renders ten digits as +1 (AAA) PPP-NNNN and leaves anything
// else as found.
func formatPhone(s string) string {
	if len(s) != 10 || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return s
	}
	return "+1 (" + s[0:3] + ") " + s[3:6] + "-" + s[6:10]
}
