// Package metrics records conversion counters and step timings through a
// pluggable Backend.
//
// The default backend discards everything, so instrumented code never checks
// whether metrics are configured. cmd/ffldb installs a Pushgateway or
// DogStatsD backend and flushes it once at exit.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	StepTotal           = "ffldb_step_total"
	StepDurationSeconds = "ffldb_step_duration_seconds"
	RecordsTotal        = "ffldb_records_total"
	BatchesTotal        = "ffldb_batches_total"
	LookupValuesTotal   = "ffldb_lookup_values_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend receives metric updates.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush delivers buffered data. Called once when the run ends.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a conversion step (schema, parse,
// flush_lookups, flush_records, finalize) and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta lines of the given kind: read, blank, written or
// skipped_<reason>.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches adds delta committed fact-row batches.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordLookups increments the count of distinct values added to a lookup
// domain.
func RecordLookups(job, domain string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(LookupValuesTotal, float64(delta), Labels{
		"job":    job,
		"domain": domain,
	})
}
