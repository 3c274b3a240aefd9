// Package intent provides fuzzy resolution of habit references.
package intent

import (
	"strings"

	"github.com/BTreeMap/HabitChat/internal/models"
)

// Resolve matches a free-text search term against the user's habit set and
// returns the best match, or nil when nothing matches.
//
// Matching tiers, first hit wins: case-insensitive exact name equality,
// substring containment in either direction, then token-level containment.
// Exact equality is checked across the whole list before any partial tier so
// an exact match is never shadowed by a looser match earlier in the list.
func Resolve(habits []models.Habit, term string) *models.Habit {
	search := strings.ToLower(strings.TrimSpace(term))
	if len(habits) == 0 || search == "" {
		return nil
	}

	for i := range habits {
		if strings.ToLower(habits[i].Name) == search {
			return &habits[i]
		}
	}

	for i := range habits {
		name := strings.ToLower(habits[i].Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, search) || strings.Contains(search, name) {
			return &habits[i]
		}
	}

	for _, word := range strings.Fields(search) {
		for i := range habits {
			name := strings.ToLower(habits[i].Name)
			if name == "" {
				continue
			}
			if strings.Contains(name, word) || strings.Contains(word, name) {
				return &habits[i]
			}
		}
	}

	return nil
}

// ResolveExact reports whether the term matches a habit name exactly
// (case-insensitive). The orchestrator uses this to tell a confident
// resolution apart from a fuzzy one.
func ResolveExact(habits []models.Habit, term string) bool {
	search := strings.ToLower(strings.TrimSpace(term))
	for i := range habits {
		if strings.ToLower(habits[i].Name) == search {
			return true
		}
	}
	return false
}

// FindHabitInMessage scans a message for any stored habit name mentioned as a
// substring and returns that name, or "" if none appears. Used by the
// deterministic parser to locate delete/update/select targets.
func FindHabitInMessage(message string, habits []models.Habit) string {
	msg := strings.ToLower(message)
	for i := range habits {
		name := strings.ToLower(habits[i].Name)
		if name != "" && strings.Contains(msg, name) {
			return habits[i].Name
		}
	}
	return ""
}
