// Package store provides storage backends for HabitChat.
//
// This file implements an SQLite-backed store for habits, completions, and
// conversation history.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/HabitChat/internal/models"
	"github.com/BTreeMap/HabitChat/internal/streak"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	slog.Debug("SQLite database opened")

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateHabit(userID, name, description string) (models.Habit, error) {
	now := time.Now().UTC()
	h := models.Habit{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Exec(`INSERT INTO habits (id, user_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Name, h.Description, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateHabit failed", "error", err, "userID", userID)
		return models.Habit{}, fmt.Errorf("failed to insert habit %s: %w", name, err)
	}
	slog.Debug("SQLiteStore CreateHabit succeeded", "habitID", h.ID, "userID", userID)
	return h, nil
}

func (s *SQLiteStore) ListHabits(userID string) ([]models.Habit, error) {
	rows, err := s.db.Query(`SELECT id, user_id, name, description, created_at, updated_at FROM habits WHERE user_id = ? ORDER BY created_at, name`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListHabits query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			slog.Error("SQLiteStore ListHabits scan failed", "error", err)
			return nil, err
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListHabits rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate habit rows: %w", err)
	}

	today := models.Day(time.Now())
	for i := range habits {
		completions, err := s.completionsByHabit(habits[i].ID)
		if err != nil {
			return nil, err
		}
		habits[i].Streak = streak.Current(completions, today)
	}
	slog.Debug("SQLiteStore ListHabits succeeded", "userID", userID, "count", len(habits))
	return habits, nil
}

func (s *SQLiteStore) GetHabit(userID, habitID string) (models.Habit, error) {
	row := s.db.QueryRow(`SELECT id, user_id, name, description, created_at, updated_at FROM habits WHERE id = ? AND user_id = ?`, habitID, userID)
	h, err := scanHabitRow(row)
	if err == sql.ErrNoRows {
		return models.Habit{}, models.ErrHabitNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetHabit failed", "error", err, "habitID", habitID)
		return models.Habit{}, fmt.Errorf("failed to query habit %s: %w", habitID, err)
	}
	completions, err := s.completionsByHabit(h.ID)
	if err != nil {
		return models.Habit{}, err
	}
	h.Streak = streak.Current(completions, models.Day(time.Now()))
	return h, nil
}

func (s *SQLiteStore) UpdateHabit(userID, habitID string, name, description *string) (models.Habit, error) {
	h, err := s.GetHabit(userID, habitID)
	if err != nil {
		return models.Habit{}, err
	}
	if name != nil {
		h.Name = *name
	}
	if description != nil {
		h.Description = *description
	}
	h.UpdatedAt = time.Now().UTC()
	_, err = s.db.Exec(`UPDATE habits SET name = ?, description = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		h.Name, h.Description, h.UpdatedAt, habitID, userID)
	if err != nil {
		slog.Error("SQLiteStore UpdateHabit failed", "error", err, "habitID", habitID)
		return models.Habit{}, fmt.Errorf("failed to update habit %s: %w", habitID, err)
	}
	slog.Debug("SQLiteStore UpdateHabit succeeded", "habitID", habitID)
	return h, nil
}

func (s *SQLiteStore) DeleteHabit(userID, habitID string) error {
	result, err := s.db.Exec(`DELETE FROM habits WHERE id = ? AND user_id = ?`, habitID, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteHabit failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to delete habit %s: %w", habitID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return models.ErrHabitNotFound
	}
	if _, err := s.db.Exec(`DELETE FROM completions WHERE habit_id = ?`, habitID); err != nil {
		slog.Error("SQLiteStore DeleteHabit completion cleanup failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to delete completions for habit %s: %w", habitID, err)
	}
	slog.Debug("SQLiteStore DeleteHabit succeeded", "habitID", habitID)
	return nil
}

func (s *SQLiteStore) DeleteAllHabits(userID string) (int, error) {
	if _, err := s.db.Exec(`DELETE FROM completions WHERE habit_id IN (SELECT id FROM habits WHERE user_id = ?)`, userID); err != nil {
		slog.Error("SQLiteStore DeleteAllHabits completion cleanup failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to delete completions for user %s: %w", userID, err)
	}
	result, err := s.db.Exec(`DELETE FROM habits WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteAllHabits failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to delete habits for user %s: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	slog.Debug("SQLiteStore DeleteAllHabits succeeded", "userID", userID, "count", affected)
	return int(affected), nil
}

func (s *SQLiteStore) LogCompletion(userID, habitID string, date time.Time, status bool, note string) (models.Completion, error) {
	if _, err := s.GetHabit(userID, habitID); err != nil {
		return models.Completion{}, err
	}
	day := models.Day(date)
	if day.After(models.Day(time.Now())) {
		return models.Completion{}, models.ErrInvalidCompletionDay
	}
	c := models.Completion{
		ID:      uuid.NewString(),
		HabitID: habitID,
		Date:    day,
		Status:  status,
		Note:    note,
	}
	_, err := s.db.Exec(`INSERT INTO completions (id, habit_id, date, status, note) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(habit_id, date) DO UPDATE SET status = excluded.status, note = excluded.note`,
		c.ID, c.HabitID, c.Date, c.Status, c.Note)
	if err != nil {
		slog.Error("SQLiteStore LogCompletion failed", "error", err, "habitID", habitID)
		return models.Completion{}, fmt.Errorf("failed to log completion for habit %s: %w", habitID, err)
	}
	slog.Debug("SQLiteStore LogCompletion succeeded", "habitID", habitID, "date", day)
	return c, nil
}

func (s *SQLiteStore) ListCompletions(userID, habitID string) ([]models.Completion, error) {
	if _, err := s.GetHabit(userID, habitID); err != nil {
		return nil, err
	}
	return s.completionsByHabit(habitID)
}

func (s *SQLiteStore) DeleteCompletions(userID, habitID string) error {
	if _, err := s.GetHabit(userID, habitID); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM completions WHERE habit_id = ?`, habitID)
	if err != nil {
		slog.Error("SQLiteStore DeleteCompletions failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to delete completions for habit %s: %w", habitID, err)
	}
	slog.Debug("SQLiteStore DeleteCompletions succeeded", "habitID", habitID)
	return nil
}

func (s *SQLiteStore) completionsByHabit(habitID string) ([]models.Completion, error) {
	rows, err := s.db.Query(`SELECT id, habit_id, date, status, note FROM completions WHERE habit_id = ? ORDER BY date`, habitID)
	if err != nil {
		slog.Error("SQLiteStore completions query failed", "error", err, "habitID", habitID)
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var completions []models.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			slog.Error("SQLiteStore completions scan failed", "error", err)
			return nil, err
		}
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore completions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate completion rows: %w", err)
	}
	return completions, nil
}

func (s *SQLiteStore) CreateSession(userID, title string) (models.ChatSession, error) {
	now := time.Now().UTC()
	session := models.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Title, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "userID", userID)
		return models.ChatSession{}, fmt.Errorf("failed to insert session: %w", err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "sessionID", session.ID, "userID", userID)
	return session, nil
}

func (s *SQLiteStore) GetSession(userID, sessionID string) (models.ChatSession, error) {
	row := s.db.QueryRow(`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = ? AND user_id = ?`, sessionID, userID)
	session, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return models.ChatSession{}, models.ErrSessionNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return models.ChatSession{}, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}
	return session, nil
}

func (s *SQLiteStore) ListSessions(userID string) ([]models.ChatSession, error) {
	rows, err := s.db.Query(`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			slog.Error("SQLiteStore ListSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSessions succeeded", "userID", userID, "count", len(sessions))
	return sessions, nil
}

func (s *SQLiteStore) AddChatMessage(userID, sessionID, role, content string) (models.ChatMessage, error) {
	session, err := s.GetSession(userID, sessionID)
	if err != nil {
		return models.ChatMessage{}, err
	}

	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	_, err = s.db.Exec(`INSERT INTO chat_messages (id, session_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AddChatMessage failed", "error", err, "sessionID", sessionID)
		return models.ChatMessage{}, fmt.Errorf("failed to insert chat message: %w", err)
	}

	title := session.Title
	if title == "" && role == "user" {
		title = sessionTitle(content)
	}
	_, err = s.db.Exec(`UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?`, title, msg.Timestamp, sessionID)
	if err != nil {
		slog.Error("SQLiteStore AddChatMessage session touch failed", "error", err, "sessionID", sessionID)
		return models.ChatMessage{}, fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore AddChatMessage succeeded", "sessionID", sessionID, "role", role)
	return msg, nil
}

func (s *SQLiteStore) ListChatMessages(userID, sessionID string) ([]models.ChatMessage, error) {
	if _, err := s.GetSession(userID, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, session_id, role, content, timestamp FROM chat_messages WHERE session_id = ? ORDER BY timestamp, id`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListChatMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore ListChatMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListChatMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate chat message rows: %w", err)
	}
	return messages, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
