// Package normalize replaces repeated text in parsed license records with
// compact surrogate keys.
//
// A Normalizer owns one lookup table per Domain. Keys are assigned per
// domain in order of first sighting, starting at 1, so the same input line
// order always produces the same keys. A Normalizer is created per run and is
// not safe for concurrent use; the conversion pipeline is single-threaded.
package normalize

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"ffldb/internal/record"
)

// Domain names a normalization domain. Several fact columns may share one
// domain (premise and mailing state both use DomainState).
type Domain string

// The fixed normalization policy. Only these domains exist; the set is not
// discovered from data.
const (
	DomainState          Domain = "state"
	DomainCity           Domain = "city"
	DomainLicenseType    Domain = "license_type"
	DomainExpirationCode Domain = "expiration_code"
	DomainRegion         Domain = "region"
	DomainStatus         Domain = "status"
	DomainName           Domain = "name"
)

// Domains lists every domain in schema order.
var Domains = []Domain{
	DomainState,
	DomainCity,
	DomainLicenseType,
	DomainExpirationCode,
	DomainRegion,
	DomainStatus,
	DomainName,
}

// Table returns the lookup table name for d.
func (d Domain) Table() string { return "lkp_" + string(d) }

// ErrUnknownDomain is returned for a domain outside the fixed policy.
var ErrUnknownDomain = errors.New("normalize: unknown domain")

// Entry is one lookup row.
type Entry struct {
	Key   int64
	Value string
}

type table struct {
	keys    map[string]int64
	values  []string // values[k-1] is the text for key k
	flushed int      // count of values already handed to the loader

	refs        int64 // Internalize calls
	inlineBytes int64 // bytes the referenced values would take inline
	refBytes    int64 // bytes the keys take in referencing rows
}

// Normalizer holds the per-run lookup tables.
type Normalizer struct {
	tables map[Domain]*table
}

// New returns a Normalizer with an empty table for every domain.
func New() *Normalizer {
	n := &Normalizer{tables: make(map[Domain]*table, len(Domains))}
	for _, d := range Domains {
		n.tables[d] = &table{keys: make(map[string]int64)}
	}
	return n
}

func (n *Normalizer) table(d Domain) (*table, error) {
	t, ok := n.tables[d]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, d)
	}
	return t, nil
}

// Internalize returns the key for value in domain d, assigning the next
// unused key on first sighting.
func (n *Normalizer) Internalize(d Domain, value string) (int64, error) {
	t, err := n.table(d)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, fmt.Errorf("normalize: empty value for domain %q", d)
	}
	k, ok := t.keys[value]
	if !ok {
		t.values = append(t.values, value)
		k = int64(len(t.values))
		t.keys[value] = k
	}
	t.refs++
	t.inlineBytes += int64(len(value))
	t.refBytes += int64(keyBytes(k))
	return k, nil
}

// key internalizes value unless it is empty, in which case the key is NULL.
func (n *Normalizer) key(d Domain, value string) (sql.NullInt64, error) {
	if value == "" {
		return sql.NullInt64{}, nil
	}
	k, err := n.Internalize(d, value)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: k, Valid: true}, nil
}

// Normalize applies the fixed policy to rec.
func (n *Normalizer) Normalize(rec record.Record) (record.Normalized, error) {
	out := record.Normalized{
		LicenseNumber:  rec.LicenseNumber,
		District:       rec.District,
		County:         rec.County,
		Sequence:       rec.Sequence,
		PremiseStreet:  rec.PremiseStreet,
		PremiseZip:     rec.PremiseZip,
		MailingStreet:  rec.MailingStreet,
		MailingZip:     rec.MailingZip,
		Phone:          rec.Phone,
		IssueDate:      rec.IssueDate,
		ExpirationDate: rec.ExpirationDate,
		SourceLine:     rec.Line,
	}

	refs := []struct {
		dst   *sql.NullInt64
		d     Domain
		value string
	}{
		{&out.RegionID, DomainRegion, rec.Region},
		{&out.LicenseTypeID, DomainLicenseType, rec.LicenseType},
		{&out.ExpirationCodeID, DomainExpirationCode, rec.ExpirationCode},
		{&out.LicenseNameID, DomainName, rec.LicenseName},
		{&out.BusinessNameID, DomainName, rec.BusinessName},
		{&out.PremiseCityID, DomainCity, rec.PremiseCity},
		{&out.PremiseStateID, DomainState, rec.PremiseState},
		{&out.MailingCityID, DomainCity, rec.MailingCity},
		{&out.MailingStateID, DomainState, rec.MailingState},
		{&out.StatusID, DomainStatus, rec.Status},
	}
	for _, r := range refs {
		k, err := n.key(r.d, r.value)
		if err != nil {
			return record.Normalized{}, err
		}
		*r.dst = k
	}
	return out, nil
}

// Lookup resolves key back to its text.
func (n *Normalizer) Lookup(d Domain, key int64) (string, bool) {
	t, ok := n.tables[d]
	if !ok || key < 1 || key > int64(len(t.values)) {
		return "", false
	}
	return t.values[key-1], true
}

// Entries returns every entry of d in key order.
func (n *Normalizer) Entries(d Domain) []Entry {
	t, ok := n.tables[d]
	if !ok {
		return nil
	}
	return entries(t.values, 0)
}

// Pending returns the entries of d assigned since the last MarkFlushed.
func (n *Normalizer) Pending(d Domain) []Entry {
	t, ok := n.tables[d]
	if !ok {
		return nil
	}
	return entries(t.values, t.flushed)
}

// MarkFlushed records that every entry of d handed out by Pending so far
// has been committed.
func (n *Normalizer) MarkFlushed(d Domain) {
	if t, ok := n.tables[d]; ok {
		t.flushed = len(t.values)
	}
}

func entries(values []string, from int) []Entry {
	if from >= len(values) {
		return nil
	}
	out := make([]Entry, 0, len(values)-from)
	for i := from; i < len(values); i++ {
		out = append(out, Entry{Key: int64(i + 1), Value: values[i]})
	}
	return out
}

// Counts returns the distinct value count per domain.
func (n *Normalizer) Counts() map[Domain]int {
	out := make(map[Domain]int, len(n.tables))
	for d, t := range n.tables {
		out[d] = len(t.values)
	}
	return out
}

// Values returns the distinct values of d sorted by text. Useful when
// comparing two runs whose key numbers differ only by encounter order.
func (n *Normalizer) Values(d Domain) []string {
	t, ok := n.tables[d]
	if !ok {
		return nil
	}
	out := append([]string(nil), t.values...)
	sort.Strings(out)
	return out
}

// StorageBytes estimates the bytes used by the normalized form: each
// distinct value stored once with its key, plus one key per reference.
func (n *Normalizer) StorageBytes() int64 {
	var total int64
	for _, t := range n.tables {
		for i, v := range t.values {
			total += int64(len(v) + keyBytes(int64(i+1)))
		}
		total += t.refBytes
	}
	return total
}

// InlineBytes is the size the referenced values would take if every row
// stored its text inline.
func (n *Normalizer) InlineBytes() int64 {
	var total int64
	for _, t := range n.tables {
		total += t.inlineBytes
	}
	return total
}

// keyBytes is the width SQLite uses to store integer k in a record.
func keyBytes(k int64) int {
	switch {
	case k <= 127:
		return 1
	case k <= 32767:
		return 2
	case k <= 8388607:
		return 3
	case k <= 2147483647:
		return 4
	case k <= 140737488355327:
		return 6
	default:
		return 8
	}
}
