package types

import (
	"testing"
	"time"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func TestAddClampedMonths(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			name:   "mid month",
			start:  time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "end of january clamps to february",
			start:  time.Date(2009, time.January, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2009, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "end of february sticks to end of march",
			start:  time.Date(2009, time.February, 28, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2009, time.March, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "two months from end of january",
			start:  time.Date(2009, time.January, 31, 0, 0, 0, 0, time.UTC),
			months: 2,
			want:   time.Date(2009, time.March, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "leap year february",
			start:  time.Date(2024, time.January, 30, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "cross year boundary",
			start:  time.Date(2024, time.November, 15, 0, 0, 0, 0, time.UTC),
			months: 3,
			want:   time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "twelve months",
			start:  time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
			months: 12,
			want:   time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "zero months keeps the date",
			start:  time.Date(2024, time.May, 5, 13, 45, 0, 0, time.UTC),
			months: 0,
			want:   time.Date(2024, time.May, 5, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddClampedMonths(tt.start, tt.months)
			if !got.Equal(tt.want) {
				t.Errorf("AddClampedMonths() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConsecutiveMonthsMatchMultiMonth(t *testing.T) {
	start := time.Date(2009, time.January, 31, 0, 0, 0, 0, time.UTC)
	stepwise := AddClampedMonths(AddClampedMonths(start, 1), 1)
	if !stepwise.Equal(AddClampedMonths(start, 2)) {
		t.Errorf("stepwise = %v, want %v", stepwise, AddClampedMonths(start, 2))
	}
}

func TestStartOfDay(t *testing.T) {
	// 02:00 IST on the 2nd is still the 1st in UTC
	in := time.Date(2024, time.March, 2, 2, 0, 0, 0, ist)
	want := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	if got := StartOfDay(in); !got.Equal(want) {
		t.Errorf("StartOfDay() = %v, want %v", got, want)
	}
}

func TestDaysBetween(t *testing.T) {
	base := time.Date(2024, time.March, 10, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same day", time.Date(2024, time.March, 10, 1, 0, 0, 0, time.UTC), 0},
		{"future", time.Date(2024, time.March, 30, 0, 0, 0, 0, time.UTC), 20},
		{"past", time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC), -5},
		{"across months", time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(base, tt.to); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}
