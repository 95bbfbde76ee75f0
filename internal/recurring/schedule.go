package recurring

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/punchamoorthee/bizfin/internal/domain"
)

// Next returns the occurrence that follows d for the given frequency.
// Unknown frequencies advance monthly and an interval below 1 counts as 1.
func Next(d civil.Date, freq domain.Frequency, interval int) civil.Date {
	if interval < 1 {
		interval = 1
	}

	switch freq {
	case domain.FrequencyDaily:
		return d.AddDays(interval)
	case domain.FrequencyWeekly:
		return d.AddDays(7 * interval)
	case domain.FrequencyQuarterly:
		return addMonths(d, 3*interval)
	case domain.FrequencyYearly:
		return civil.DateOf(d.In(time.UTC).AddDate(interval, 0, 0))
	default:
		return addMonths(d, interval)
	}
}

// addMonths moves d forward n months. Anchors past the 28th that do not
// exist in the target month land on its last day.
func addMonths(d civil.Date, n int) civil.Date {
	moved := civil.DateOf(d.In(time.UTC).AddDate(0, n, 0))
	if moved.Day == d.Day || d.Day <= 28 {
		return moved
	}
	// AddDate overflowed into the following month; day 0 of that month is
	// the last day of the target month.
	last := time.Date(moved.Year, moved.Month, 0, 0, 0, 0, 0, time.UTC)
	return civil.DateOf(last)
}
