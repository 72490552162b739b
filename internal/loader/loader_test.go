package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffldb/internal/normalize"
	"ffldb/internal/record"
	"ffldb/internal/schema"
	"ffldb/internal/storage"
	"ffldb/internal/storage/sqlite"
)

// fakeRepo records every CopyFrom call and can fail on a given call number.
type fakeRepo struct {
	calls  [][]storage.TableRows
	failOn int // 1-based call number; 0 never fails
}

func (f *fakeRepo) Exec(context.Context, string) error        { return nil }
func (f *fakeRepo) Objects(context.Context) ([]string, error) { return nil, nil }
func (f *fakeRepo) Close()                                    {}

func (f *fakeRepo) CopyFrom(_ context.Context, b ...storage.TableRows) (int64, error) {
	f.calls = append(f.calls, b)
	if f.failOn == len(f.calls) {
		return 0, errors.New("disk I/O error")
	}
	var n int64
	for _, t := range b {
		n += int64(len(t.Rows))
	}
	return n, nil
}

func tables(b []storage.TableRows) []string {
	out := make([]string, len(b))
	for i, t := range b {
		out[i] = t.Table
	}
	return out
}

func rec(n *normalize.Normalizer, t *testing.T, i int, state, city string) record.Normalized {
	t.Helper()
	out, err := n.Normalize(record.Record{
		LicenseNumber: fmt.Sprintf("1-23-456-07-9X-%05d", i),
		LicenseType:   "07",
		PremiseState:  state,
		PremiseCity:   city,
		Line:          i,
	})
	require.NoError(t, err)
	return out
}

func TestFlush_LookupsBeforeRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{}
	norm := normalize.New()
	l := New(repo, norm, Options{BatchSize: 2, Clock: clockwork.NewFakeClock()})

	require.NoError(t, l.Add(ctx, rec(norm, t, 1, "TX", "AUSTIN")))
	assert.Empty(t, repo.calls, "no flush before the batch fills")
	require.NoError(t, l.Add(ctx, rec(norm, t, 2, "OK", "AUSTIN")))

	require.Len(t, repo.calls, 2)
	assert.Equal(t, []string{"lkp_state", "lkp_city", "lkp_license_type"}, tables(repo.calls[0]))
	assert.Equal(t, [][]any{{int64(1), "TX"}, {int64(2), "OK"}}, repo.calls[0][0].Rows)
	assert.Equal(t, []string{schema.FactTable}, tables(repo.calls[1]))
	assert.Len(t, repo.calls[1][0].Rows, 2)

	// Only new values go out with the next flush.
	require.NoError(t, l.Add(ctx, rec(norm, t, 3, "TX", "DALLAS")))
	require.NoError(t, l.Flush(ctx))
	require.Len(t, repo.calls, 4)
	assert.Equal(t, []string{"lkp_city"}, tables(repo.calls[2]))
	assert.Equal(t, [][]any{{int64(2), "DALLAS"}}, repo.calls[2][0].Rows)

	assert.Equal(t, int64(3), l.Written())
	assert.Equal(t, int64(2), l.Batches())
	assert.Equal(t, int64(5), l.LookupValues())
	assert.Zero(t, l.Buffered())

	// Nothing pending: flush is a no-op.
	require.NoError(t, l.Flush(ctx))
	assert.Len(t, repo.calls, 4)
}

func TestFlush_LookupFailureIsPersistenceError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{failOn: 1}
	norm := normalize.New()
	l := New(repo, norm, Options{BatchSize: 10})

	require.NoError(t, l.Add(ctx, rec(norm, t, 1, "TX", "AUSTIN")))
	err := l.Flush(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceFailure)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "lookups", pe.Op)
	assert.Contains(t, pe.Tables, "lkp_state")

	// Records were not attempted and lookups stay pending.
	assert.Len(t, repo.calls, 1)
	assert.Equal(t, 1, l.Buffered())
	assert.Len(t, norm.Pending(normalize.DomainState), 1)
}

func TestFlush_RecordFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &fakeRepo{failOn: 2}
	norm := normalize.New()
	l := New(repo, norm, Options{})

	require.NoError(t, l.Add(ctx, rec(norm, t, 1, "TX", "AUSTIN")))
	err := l.Flush(ctx)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "records", pe.Op)
	assert.Equal(t, []string{schema.FactTable}, pe.Tables)
	assert.Zero(t, l.Written())
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestWriteMeta_SortedKeys(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	l := New(repo, normalize.New(), Options{})
	require.NoError(t, l.WriteMeta(context.Background(), map[string]string{"records": "2", "built_at": "x", "schema_version": "1"}))
	require.Len(t, repo.calls, 1)
	assert.Equal(t, schema.MetaTable, repo.calls[0][0].Table)
	assert.Equal(t, [][]any{{"built_at", "x"}, {"records", "2"}, {"schema_version", "1"}}, repo.calls[0][0].Rows)

	require.NoError(t, l.WriteMeta(context.Background(), nil))
	assert.Len(t, repo.calls, 1)
}

// TestLoader_SQLiteIntegrity loads many small batches into a real database
// and checks that every reference resolves.
func TestLoader_SQLiteIntegrity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "load.db")
	repo, err := storage.New(ctx, storage.Config{Kind: sqlite.Kind, DSN: path})
	require.NoError(t, err)
	defer repo.Close()
	d, err := storage.DialectFor(sqlite.Kind)
	require.NoError(t, err)
	require.NoError(t, schema.NewWriter(repo, d, nil).CreateSchema(ctx))

	norm := normalize.New()
	l := New(repo, norm, Options{BatchSize: 7})
	states := []string{"TX", "OK", "NM"}
	for i := 1; i <= 50; i++ {
		require.NoError(t, l.Add(ctx, rec(norm, t, i, states[i%3], fmt.Sprintf("CITY %d", i%11))))
	}
	require.NoError(t, l.Flush(ctx))
	assert.Equal(t, int64(50), l.Written())
	assert.Equal(t, int64(8), l.Batches())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`PRAGMA foreign_key_check`)
	require.NoError(t, err)
	assert.False(t, rows.Next(), "foreign_key_check reported violations")
	require.NoError(t, rows.Close())

	var cities, orphans int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM lkp_city`).Scan(&cities))
	assert.Equal(t, 11, cities)
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM licenses f
		LEFT JOIN lkp_state s ON s.id = f.premise_state_id
		WHERE f.premise_state_id IS NOT NULL AND s.id IS NULL`).Scan(&orphans))
	assert.Zero(t, orphans)
}
