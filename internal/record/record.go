// Package record defines the typed shapes a FFLeZCheck line passes through on
// its way into the database: the parsed Record and its Normalized form, where
// repeated text has been replaced by lookup-table surrogate keys.
package record

import (
	"database/sql"

	"github.com/golang-sql/civil"
)

// Record is one parsed license line. Text fields are trimmed and canonical;
// an empty string means the source column was blank.
type Record struct {
	// LicenseNumber is the natural key, rendered R-DD-CCC-TT-EE-SSSSS.
	LicenseNumber string

	// Segments of the license number.
	Region         string
	District       string
	County         string
	LicenseType    string
	ExpirationCode string
	Sequence       string

	LicenseName  string
	BusinessName string

	PremiseStreet string
	PremiseCity   string
	PremiseState  string
	PremiseZip    string

	MailingStreet string
	MailingCity   string
	MailingState  string
	MailingZip    string

	Phone string

	// IssueDate and ExpirationDate are nil when the source left them blank.
	IssueDate      *civil.Date
	ExpirationDate *civil.Date

	Status string

	// Line is the 1-based source line number. It is not part of the parsed
	// value; the orchestrator stamps it after parsing.
	Line int
}

// Normalized is a Record whose categorical and repeating text fields have
// been replaced by surrogate keys. A NULL key means the text was empty.
type Normalized struct {
	LicenseNumber string

	RegionID         sql.NullInt64
	District         string
	County           string
	LicenseTypeID    sql.NullInt64
	ExpirationCodeID sql.NullInt64
	Sequence         string

	LicenseNameID  sql.NullInt64
	BusinessNameID sql.NullInt64

	PremiseStreet  string
	PremiseCityID  sql.NullInt64
	PremiseStateID sql.NullInt64
	PremiseZip     string
	MailingStreet  string
	MailingCityID  sql.NullInt64
	MailingStateID sql.NullInt64
	MailingZip     string
	Phone          string
	IssueDate      *civil.Date
	ExpirationDate *civil.Date
	StatusID       sql.NullInt64
	SourceLine     int
}

// FactColumns is the column order of the licenses fact table used by Row.
var FactColumns = []string{
	"license_number",
	"region_id",
	"district",
	"county",
	"license_type_id",
	"expiration_code_id",
	"sequence",
	"license_name_id",
	"business_name_id",
	"premise_street",
	"premise_city_id",
	"premise_state_id",
	"premise_zip",
	"mailing_street",
	"mailing_city_id",
	"mailing_state_id",
	"mailing_zip",
	"phone",
	"issue_date",
	"expiration_date",
	"status_id",
	"source_line",
}

// Row returns the values of n aligned to FactColumns. Empty optional text is
// written as NULL; dates are written as ISO YYYY-MM-DD text.
func (n Normalized) Row() []any {
	return []any{
		n.LicenseNumber,
		nullKey(n.RegionID),
		nullText(n.District),
		nullText(n.County),
		nullKey(n.LicenseTypeID),
		nullKey(n.ExpirationCodeID),
		nullText(n.Sequence),
		nullKey(n.LicenseNameID),
		nullKey(n.BusinessNameID),
		nullText(n.PremiseStreet),
		nullKey(n.PremiseCityID),
		nullKey(n.PremiseStateID),
		nullText(n.PremiseZip),
		nullText(n.MailingStreet),
		nullKey(n.MailingCityID),
		nullKey(n.MailingStateID),
		nullText(n.MailingZip),
		nullText(n.Phone),
		nullDate(n.IssueDate),
		nullDate(n.ExpirationDate),
		nullKey(n.StatusID),
		n.SourceLine,
	}
}

func nullKey(k sql.NullInt64) any {
	if !k.Valid {
		return nil
	}
	return k.Int64
}

func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(d *civil.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}
