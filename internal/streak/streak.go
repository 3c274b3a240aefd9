// Package streak derives consecutive-completion streaks from completion records.
//
// Both functions are pure: they read only their arguments and are safe to
// call concurrently.
package streak

import (
	"sort"
	"time"

	"github.com/BTreeMap/HabitChat/internal/models"
)

// Current returns the number of consecutive calendar days with a successful
// completion, counting backward from today. A day that has not been logged
// yet does not break an existing streak: if today is absent but yesterday is
// present, counting starts at yesterday. Returns 0 when neither today nor
// yesterday was completed.
func Current(completions []models.Completion, today time.Time) int {
	dates := completedDates(completions)
	if len(dates) == 0 {
		return 0
	}

	check := models.Day(today)
	if !dates[check] {
		check = check.AddDate(0, 0, -1)
		if !dates[check] {
			return 0
		}
	}

	count := 0
	for dates[check] {
		count++
		check = check.AddDate(0, 0, -1)
	}
	return count
}

// Longest returns the length of the longest run of consecutive completed
// calendar days across the full completion set.
func Longest(completions []models.Completion) int {
	dates := completedDates(completions)
	if len(dates) == 0 {
		return 0
	}

	sorted := make([]time.Time, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	longest, run := 0, 0
	for i, d := range sorted {
		if i > 0 && d.Sub(sorted[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// completedDates builds the set of calendar days with status=true records.
func completedDates(completions []models.Completion) map[time.Time]bool {
	dates := make(map[time.Time]bool)
	for _, c := range completions {
		if c.Status {
			dates[models.Day(c.Date)] = true
		}
	}
	return dates
}
