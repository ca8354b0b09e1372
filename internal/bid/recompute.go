package bid

import "time"

// Recompute turns one raw snapshot of the curated store into the full
// derived bid set: normalized actual records followed by their forecast
// predictions. It is pure and idempotent, so the host can re-run it on every
// change notification and replace the previous output wholesale.
func Recompute(snap Snapshot, now time.Time) []Record {
	actual := BuildRecords(snap.Grouped, snap.Annotations, now)
	return append(actual, Forecast(actual)...)
}
