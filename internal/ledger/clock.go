package ledger

import "time"

// The daily cap resets at 03:00 in a fixed UTC+3 reference timezone. A
// "reference date" is the calendar date in that zone with the day boundary
// shifted to 03:00, so 02:59 still belongs to the previous day.
var referenceZone = time.FixedZone("UTC+3", 3*60*60)

// dayAnchorHours shifts the day boundary from midnight to 03:00.
const dayAnchorHours = 3

// ReferenceDate returns the reference date for the given instant in
// YYYY-MM-DD form. Accruals on the same reference date share one daily cap.
func ReferenceDate(t time.Time) string {
	return t.In(referenceZone).Add(-dayAnchorHours * time.Hour).Format("2006-01-02")
}
