package ffl

import (
	"encoding/csv"
	"strings"

	"ffldb/internal/record"
)

// delimitedFields is the column count of the pipe layout.
const delimitedFields = 10

// Delimited parses the pipe layout. Quoting follows encoding/csv with lazy
// quotes, so apostrophes inside names (BOB'S GUNS) and quoted fields that
// contain the delimiter are both accepted. A field that merely starts with
// a quote ("BIG" GUNS) swallows the rest of the line under csv rules; when
// that leaves the wrong field count the line is split literally instead.
type Delimited struct {
	comma rune
}

// NewDelimited returns a Delimited layout splitting on comma ('|' when zero).
func NewDelimited(comma rune) Delimited {
	if comma == 0 {
		comma = '|'
	}
	return Delimited{comma: comma}
}

func (Delimited) Name() string { return LayoutPipe }

func (d Delimited) Parse(line string) (record.Record, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if strings.TrimSpace(line) == "" {
		return record.Record{}, ErrBlankLine
	}

	fields, err := d.split(line)
	if err != nil {
		return record.Record{}, err
	}
	for i := range fields {
		fields[i] = clean(fields[i])
	}

	var rec record.Record
	if err := splitLicenseNumber(LayoutPipe, fields[0], &rec); err != nil {
		return record.Record{}, err
	}
	rec.BusinessName = fields[1]
	rec.PremiseStreet = fields[2]
	rec.PremiseCity = fields[3]
	rec.PremiseState = fields[4]
	rec.PremiseZip = formatZip(fields[5])
	if fields[6] != "" {
		rec.LicenseType = fields[6]
	}

	if rec.IssueDate, err = parseISODate("issue_date", fields[7]); err != nil {
		return record.Record{}, err
	}
	if rec.ExpirationDate, err = parseISODate("expiration_date", fields[8]); err != nil {
		return record.Record{}, err
	}
	rec.Status = fields[9]
	return rec, nil
}

func (d Delimited) split(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = d.comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err == nil && len(fields) == delimitedFields {
		return fields, nil
	}
	if !strings.ContainsRune(line, '"') {
		if err != nil {
			return nil, malformed(LayoutPipe, "split: %v", err)
		}
		return nil, malformed(LayoutPipe, "want %d fields, got %d", delimitedFields, len(fields))
	}

	literal := strings.Split(line, string(d.comma))
	if len(literal) != delimitedFields {
		return nil, malformed(LayoutPipe, "want %d fields, got %d", delimitedFields, len(literal))
	}
	return literal, nil
}
