package recurring

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/punchamoorthee/bizfin/internal/domain"
)

func d(y int, m time.Month, day int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: day}
}

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		from     civil.Date
		freq     domain.Frequency
		interval int
		want     civil.Date
	}{
		{name: "daily", from: d(2024, time.January, 30), freq: domain.FrequencyDaily, interval: 3, want: d(2024, time.February, 2)},
		{name: "weekly", from: d(2024, time.January, 1), freq: domain.FrequencyWeekly, interval: 2, want: d(2024, time.January, 15)},
		{name: "monthly", from: d(2024, time.January, 1), freq: domain.FrequencyMonthly, interval: 1, want: d(2024, time.February, 1)},
		{name: "monthly clamps jan 31 in a leap year", from: d(2024, time.January, 31), freq: domain.FrequencyMonthly, interval: 1, want: d(2024, time.February, 29)},
		{name: "monthly clamps jan 31", from: d(2023, time.January, 31), freq: domain.FrequencyMonthly, interval: 1, want: d(2023, time.February, 28)},
		{name: "monthly clamps jan 29 in a common year", from: d(2023, time.January, 29), freq: domain.FrequencyMonthly, interval: 1, want: d(2023, time.February, 28)},
		{name: "monthly clamps mar 31", from: d(2024, time.March, 31), freq: domain.FrequencyMonthly, interval: 1, want: d(2024, time.April, 30)},
		{name: "monthly keeps day 28", from: d(2024, time.January, 28), freq: domain.FrequencyMonthly, interval: 1, want: d(2024, time.February, 28)},
		{name: "monthly across year end", from: d(2024, time.November, 30), freq: domain.FrequencyMonthly, interval: 3, want: d(2025, time.February, 28)},
		{name: "quarterly", from: d(2024, time.January, 15), freq: domain.FrequencyQuarterly, interval: 1, want: d(2024, time.April, 15)},
		{name: "quarterly clamps", from: d(2024, time.November, 30), freq: domain.FrequencyQuarterly, interval: 1, want: d(2025, time.February, 28)},
		{name: "yearly", from: d(2023, time.June, 10), freq: domain.FrequencyYearly, interval: 2, want: d(2025, time.June, 10)},
		{name: "yearly from leap day", from: d(2024, time.February, 29), freq: domain.FrequencyYearly, interval: 1, want: d(2025, time.March, 1)},
		{name: "unknown frequency is monthly", from: d(2024, time.January, 31), freq: domain.Frequency("fortnightly"), interval: 1, want: d(2024, time.February, 29)},
		{name: "zero interval counts as one", from: d(2024, time.January, 1), freq: domain.FrequencyDaily, interval: 0, want: d(2024, time.January, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.from, tt.freq, tt.interval); got != tt.want {
				t.Fatalf("Next(%s, %s, %d) = %s, want %s", tt.from, tt.freq, tt.interval, got, tt.want)
			}
		})
	}
}
