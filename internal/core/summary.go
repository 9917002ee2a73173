package core

import (
	"sort"
	"strings"
	"time"
)

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Period selects the bucket width of the time-based summary.
type Period string

// ParsePeriod maps a query value to a Period; anything but "year" is month.
func ParsePeriod(s string) Period {
	if strings.EqualFold(strings.TrimSpace(s), string(PeriodYear)) {
		return PeriodYear
	}
	return PeriodMonth
}

// CategoryTotal is the amount spent in one category.
type CategoryTotal struct {
	Category string `json:"_id"`
	Total    Money  `json:"total"`
}

// PeriodTotal is the amount spent in one year or one month of a year.
type PeriodTotal struct {
	Year  int   `json:"year"`
	Month int   `json:"month,omitempty"`
	Total Money `json:"total"`
}

// Summary groups a user's spending by category and by period.
type Summary struct {
	Period     Period          `json:"period"`
	ByCategory []CategoryTotal `json:"byCategory"`
	ByPeriod   []PeriodTotal   `json:"byPeriod"`
}

// SortCategoryTotals orders by total descending, then by name.
func SortCategoryTotals(totals []CategoryTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Total.GreaterThan(totals[j].Total) {
			return true
		}
		if totals[j].Total.GreaterThan(totals[i].Total) {
			return false
		}
		return totals[i].Category < totals[j].Category
	})
}

// SortPeriodTotals orders buckets chronologically.
func SortPeriodTotals(totals []PeriodTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Year != totals[j].Year {
			return totals[i].Year < totals[j].Year
		}
		return totals[i].Month < totals[j].Month
	})
}

// BucketOf returns the bucket a date falls in for the given period.
func BucketOf(t time.Time, period Period) PeriodTotal {
	t = t.UTC()
	if period == PeriodYear {
		return PeriodTotal{Year: t.Year()}
	}
	return PeriodTotal{Year: t.Year(), Month: int(t.Month())}
}
