package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/HabitChat/internal/models"
)

// scanHabit scans a Habit from sql.Rows.
func scanHabit(rows *sql.Rows) (models.Habit, error) {
	var h models.Habit
	if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return h, fmt.Errorf("scan habit failed: %w", err)
	}
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	return h, nil
}

// scanHabitRow scans a Habit from a single sql.Row.
func scanHabitRow(row *sql.Row) (models.Habit, error) {
	var h models.Habit
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return h, err
	}
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	return h, nil
}

// scanCompletion scans a Completion from sql.Rows. Dates are renormalized to
// midnight UTC so streak math never sees a driver-local timestamp.
func scanCompletion(rows *sql.Rows) (models.Completion, error) {
	var c models.Completion
	if err := rows.Scan(&c.ID, &c.HabitID, &c.Date, &c.Status, &c.Note); err != nil {
		return c, fmt.Errorf("scan completion failed: %w", err)
	}
	c.Date = models.Day(c.Date)
	return c, nil
}

// scanSession scans a ChatSession from sql.Rows.
func scanSession(rows *sql.Rows) (models.ChatSession, error) {
	var s models.ChatSession
	if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, fmt.Errorf("scan session failed: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// scanSessionRow scans a ChatSession from a single sql.Row.
func scanSessionRow(row *sql.Row) (models.ChatSession, error) {
	var s models.ChatSession
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// scanMessage scans a ChatMessage from sql.Rows.
func scanMessage(rows *sql.Rows) (models.ChatMessage, error) {
	var m models.ChatMessage
	if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Timestamp); err != nil {
		return m, fmt.Errorf("scan chat message failed: %w", err)
	}
	m.Timestamp = m.Timestamp.UTC()
	return m, nil
}
