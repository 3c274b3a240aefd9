// Package store provides storage backends for HabitChat.
//
// This file implements a PostgreSQL-backed store for habits, completions,
// and conversation history.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/BTreeMap/HabitChat/internal/models"
	"github.com/BTreeMap/HabitChat/internal/streak"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	slog.Debug("Postgres database opened")

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")
	// Run migrations to ensure tables exist
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateHabit(userID, name, description string) (models.Habit, error) {
	now := time.Now().UTC()
	h := models.Habit{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.Exec(`INSERT INTO habits (id, user_id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.UserID, h.Name, h.Description, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateHabit failed", "error", err, "userID", userID)
		return models.Habit{}, fmt.Errorf("failed to insert habit %s: %w", name, err)
	}
	slog.Debug("PostgresStore CreateHabit succeeded", "habitID", h.ID, "userID", userID)
	return h, nil
}

func (s *PostgresStore) ListHabits(userID string) ([]models.Habit, error) {
	rows, err := s.db.Query(`SELECT id, user_id, name, description, created_at, updated_at FROM habits WHERE user_id = $1 ORDER BY created_at, name`, userID)
	if err != nil {
		slog.Error("PostgresStore ListHabits query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			slog.Error("PostgresStore ListHabits scan failed", "error", err)
			return nil, err
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListHabits rows iteration failed", "error", err)
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
	slog.Debug("PostgresStore ListHabits succeeded", "userID", userID, "count", len(habits))
	return habits, nil
}

func (s *PostgresStore) GetHabit(userID, habitID string) (models.Habit, error) {
	row := s.db.QueryRow(`SELECT id, user_id, name, description, created_at, updated_at FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID)
	h, err := scanHabitRow(row)
	if err == sql.ErrNoRows {
		return models.Habit{}, models.ErrHabitNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetHabit failed", "error", err, "habitID", habitID)
		return models.Habit{}, fmt.Errorf("failed to query habit %s: %w", habitID, err)
	}
	completions, err := s.completionsByHabit(h.ID)
	if err != nil {
		return models.Habit{}, err
	}
	h.Streak = streak.Current(completions, models.Day(time.Now()))
	return h, nil
}

func (s *PostgresStore) UpdateHabit(userID, habitID string, name, description *string) (models.Habit, error) {
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
	_, err = s.db.Exec(`UPDATE habits SET name = $1, description = $2, updated_at = $3 WHERE id = $4 AND user_id = $5`,
		h.Name, h.Description, h.UpdatedAt, habitID, userID)
	if err != nil {
		slog.Error("PostgresStore UpdateHabit failed", "error", err, "habitID", habitID)
		return models.Habit{}, fmt.Errorf("failed to update habit %s: %w", habitID, err)
	}
	slog.Debug("PostgresStore UpdateHabit succeeded", "habitID", habitID)
	return h, nil
}

func (s *PostgresStore) DeleteHabit(userID, habitID string) error {
	result, err := s.db.Exec(`DELETE FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteHabit failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to delete habit %s: %w", habitID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return models.ErrHabitNotFound
	}
	if _, err := s.db.Exec(`DELETE FROM completions WHERE habit_id = $1`, habitID); err != nil {
		slog.Error("PostgresStore DeleteHabit completion cleanup failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to delete completions for habit %s: %w", habitID, err)
	}
	slog.Debug("PostgresStore DeleteHabit succeeded", "habitID", habitID)
	return nil
}

func (s *PostgresStore) DeleteAllHabits(userID string) (int, error) {
	if _, err := s.db.Exec(`DELETE FROM completions WHERE habit_id IN (SELECT id FROM habits WHERE user_id = $1)`, userID); err != nil {
		slog.Error("PostgresStore DeleteAllHabits completion cleanup failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to delete completions for user %s: %w", userID, err)
	}
	result, err := s.db.Exec(`DELETE FROM habits WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteAllHabits failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to delete habits for user %s: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	slog.Debug("PostgresStore DeleteAllHabits succeeded", "userID", userID, "count", affected)
	return int(affected), nil
}

func (s *PostgresStore) LogCompletion(userID, habitID string, date time.Time, status bool, note string) (models.Completion, error) {
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
	_, err := s.db.Exec(`INSERT INTO completions (id, habit_id, date, status, note) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (habit_id, date) DO UPDATE SET status = EXCLUDED.status, note = EXCLUDED.note`,
		c.ID, c.HabitID, c.Date, c.Status, c.Note)
	if err != nil {
		slog.Error("PostgresStore LogCompletion failed", "error", err, "habitID", habitID)
		return models.Completion{}, fmt.Errorf("failed to log completion for habit %s: %w", habitID, err)
	}
	slog.Debug("PostgresStore LogCompletion succeeded", "habitID", habitID, "date", day)
	return c, nil
}

func (s *PostgresStore) ListCompletions(userID, habitID string) ([]models.Completion, error) {
	if _, err := s.GetHabit(userID, habitID); err != nil {
		return nil, err
	}
	return s.completionsByHabit(habitID)
}

func (s *PostgresStore) DeleteCompletions(userID, habitID string) error {
	if _, err := s.GetHabit(userID, habitID); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM completions WHERE habit_id = $1`, habitID)
	if err != nil {
		slog.Error("PostgresStore DeleteCompletions failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to delete completions for habit %s: %w", habitID, err)
	}
	slog.Debug("PostgresStore DeleteCompletions succeeded", "habitID", habitID)
	return nil
}

func (s *PostgresStore) completionsByHabit(habitID string) ([]models.Completion, error) {
	rows, err := s.db.Query(`SELECT id, habit_id, date, status, note FROM completions WHERE habit_id = $1 ORDER BY date`, habitID)
	if err != nil {
		slog.Error("PostgresStore completions query failed", "error", err, "habitID", habitID)
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var completions []models.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			slog.Error("PostgresStore completions scan failed", "error", err)
			return nil, err
		}
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore completions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate completion rows: %w", err)
	}
	return completions, nil
}

func (s *PostgresStore) CreateSession(userID, title string) (models.ChatSession, error) {
	now := time.Now().UTC()
	session := models.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.Title, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "userID", userID)
		return models.ChatSession{}, fmt.Errorf("failed to insert session: %w", err)
	}
	slog.Debug("PostgresStore CreateSession succeeded", "sessionID", session.ID, "userID", userID)
	return session, nil
}

func (s *PostgresStore) GetSession(userID, sessionID string) (models.ChatSession, error) {
	row := s.db.QueryRow(`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	session, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return models.ChatSession{}, models.ErrSessionNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
		return models.ChatSession{}, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}
	return session, nil
}

func (s *PostgresStore) ListSessions(userID string) ([]models.ChatSession, error) {
	rows, err := s.db.Query(`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE user_id = $1 ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			slog.Error("PostgresStore ListSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("PostgresStore ListSessions succeeded", "userID", userID, "count", len(sessions))
	return sessions, nil
}

func (s *PostgresStore) AddChatMessage(userID, sessionID, role, content string) (models.ChatMessage, error) {
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
	_, err = s.db.Exec(`INSERT INTO chat_messages (id, session_id, role, content, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AddChatMessage failed", "error", err, "sessionID", sessionID)
		return models.ChatMessage{}, fmt.Errorf("failed to insert chat message: %w", err)
	}

	title := session.Title
	if title == "" && role == "user" {
		title = sessionTitle(content)
	}
	_, err = s.db.Exec(`UPDATE chat_sessions SET title = $1, updated_at = $2 WHERE id = $3`, title, msg.Timestamp, sessionID)
	if err != nil {
		slog.Error("PostgresStore AddChatMessage session touch failed", "error", err, "sessionID", sessionID)
		return models.ChatMessage{}, fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore AddChatMessage succeeded", "sessionID", sessionID, "role", role)
	return msg, nil
}

func (s *PostgresStore) ListChatMessages(userID, sessionID string) ([]models.ChatMessage, error) {
	if _, err := s.GetSession(userID, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, session_id, role, content, timestamp FROM chat_messages WHERE session_id = $1 ORDER BY timestamp, id`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListChatMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore ListChatMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListChatMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate chat message rows: %w", err)
	}
	return messages, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
