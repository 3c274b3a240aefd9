// Package store provides storage backends for HabitChat.
//
// It includes an in-memory store for tests and single-process deployments,
// plus SQLite and PostgreSQL backends behind the same Store interface.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/HabitChat/internal/models"
	"github.com/BTreeMap/HabitChat/internal/streak"
)

// Store is the persistence interface the chat engine and HTTP API depend on.
// All reads and writes are scoped by user: a habit or session belonging to a
// different user behaves as if it does not exist.
type Store interface {
	// CreateHabit inserts a habit and returns the stored record.
	CreateHabit(userID, name, description string) (models.Habit, error)
	// ListHabits returns the user's habits ordered by creation time, each
	// with its current streak precomputed.
	ListHabits(userID string) ([]models.Habit, error)
	// GetHabit returns one habit, or models.ErrHabitNotFound.
	GetHabit(userID, habitID string) (models.Habit, error)
	// UpdateHabit applies the non-nil fields and returns the updated record.
	UpdateHabit(userID, habitID string, name, description *string) (models.Habit, error)
	// DeleteHabit removes a habit and its completion history.
	DeleteHabit(userID, habitID string) error
	// DeleteAllHabits removes every habit the user owns and returns how many
	// were deleted.
	DeleteAllHabits(userID string) (int, error)

	// LogCompletion records (or overwrites) the completion for one calendar
	// day of a habit.
	LogCompletion(userID, habitID string, date time.Time, status bool, note string) (models.Completion, error)
	// ListCompletions returns the habit's completions ordered by date.
	ListCompletions(userID, habitID string) ([]models.Completion, error)
	// DeleteCompletions clears the habit's completion history, keeping the
	// habit itself.
	DeleteCompletions(userID, habitID string) error

	// CreateSession starts a new conversation for the user.
	CreateSession(userID, title string) (models.ChatSession, error)
	// GetSession returns one session, or models.ErrSessionNotFound.
	GetSession(userID, sessionID string) (models.ChatSession, error)
	// ListSessions returns the user's sessions, most recently updated first.
	ListSessions(userID string) ([]models.ChatSession, error)
	// AddChatMessage appends a message to a session and bumps its UpdatedAt.
	AddChatMessage(userID, sessionID, role, content string) (models.ChatMessage, error)
	// ListChatMessages returns a session's messages in chronological order.
	ListChatMessages(userID, sessionID string) ([]models.ChatMessage, error)

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures store creation.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports which backend a DSN targets: "postgres" for
// connection URLs and key=value strings, "sqlite" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps everything in process memory. It is safe for
// concurrent use.
type InMemoryStore struct {
	mu          sync.RWMutex
	habits      map[string]models.Habit        // habit ID -> habit
	completions map[string][]models.Completion // habit ID -> completions
	sessions    map[string]models.ChatSession  // session ID -> session
	messages    map[string][]models.ChatMessage
	now         func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		habits:      make(map[string]models.Habit),
		completions: make(map[string][]models.Completion),
		sessions:    make(map[string]models.ChatSession),
		messages:    make(map[string][]models.ChatMessage),
		now:         time.Now,
	}
}

// SetClock overrides the time source. Used in tests.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *InMemoryStore) CreateHabit(userID, name, description string) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	h := models.Habit{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.habits[h.ID] = h
	return h, nil
}

func (s *InMemoryStore) ListHabits(userID string) ([]models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := models.Day(s.now())
	var habits []models.Habit
	for _, h := range s.habits {
		if h.UserID != userID {
			continue
		}
		h.Streak = streak.Current(s.completions[h.ID], today)
		habits = append(habits, h)
	}
	sort.Slice(habits, func(i, j int) bool {
		if habits[i].CreatedAt.Equal(habits[j].CreatedAt) {
			return habits[i].Name < habits[j].Name
		}
		return habits[i].CreatedAt.Before(habits[j].CreatedAt)
	})
	return habits, nil
}

func (s *InMemoryStore) GetHabit(userID, habitID string) (models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.habits[habitID]
	if !exists || h.UserID != userID {
		return models.Habit{}, models.ErrHabitNotFound
	}
	h.Streak = streak.Current(s.completions[h.ID], models.Day(s.now()))
	return h, nil
}

func (s *InMemoryStore) UpdateHabit(userID, habitID string, name, description *string) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.habits[habitID]
	if !exists || h.UserID != userID {
		return models.Habit{}, models.ErrHabitNotFound
	}
	if name != nil {
		h.Name = *name
	}
	if description != nil {
		h.Description = *description
	}
	h.UpdatedAt = s.now().UTC()
	s.habits[habitID] = h
	return h, nil
}

func (s *InMemoryStore) DeleteHabit(userID, habitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.habits[habitID]
	if !exists || h.UserID != userID {
		return models.ErrHabitNotFound
	}
	delete(s.habits, habitID)
	delete(s.completions, habitID)
	return nil
}

func (s *InMemoryStore) DeleteAllHabits(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, h := range s.habits {
		if h.UserID != userID {
			continue
		}
		delete(s.habits, id)
		delete(s.completions, id)
		count++
	}
	return count, nil
}

func (s *InMemoryStore) LogCompletion(userID, habitID string, date time.Time, status bool, note string) (models.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.habits[habitID]
	if !exists || h.UserID != userID {
		return models.Completion{}, models.ErrHabitNotFound
	}

	day := models.Day(date)
	if day.After(models.Day(s.now())) {
		return models.Completion{}, models.ErrInvalidCompletionDay
	}

	// Overwrite an existing entry for the same day.
	for i, c := range s.completions[habitID] {
		if c.Date.Equal(day) {
			c.Status = status
			c.Note = note
			s.completions[habitID][i] = c
			return c, nil
		}
	}

	c := models.Completion{
		ID:      uuid.NewString(),
		HabitID: habitID,
		Date:    day,
		Status:  status,
		Note:    note,
	}
	s.completions[habitID] = append(s.completions[habitID], c)
	return c, nil
}

func (s *InMemoryStore) ListCompletions(userID, habitID string) ([]models.Completion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.habits[habitID]
	if !exists || h.UserID != userID {
		return nil, models.ErrHabitNotFound
	}
	completions := make([]models.Completion, len(s.completions[habitID]))
	copy(completions, s.completions[habitID])
	sort.Slice(completions, func(i, j int) bool {
		return completions[i].Date.Before(completions[j].Date)
	})
	return completions, nil
}

func (s *InMemoryStore) DeleteCompletions(userID, habitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.habits[habitID]
	if !exists || h.UserID != userID {
		return models.ErrHabitNotFound
	}
	delete(s.completions, habitID)
	return nil
}

func (s *InMemoryStore) CreateSession(userID, title string) (models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	session := models.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *InMemoryStore) GetSession(userID, sessionID string) (models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.UserID != userID {
		return models.ChatSession{}, models.ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemoryStore) ListSessions(userID string) ([]models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []models.ChatSession
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *InMemoryStore) AddChatMessage(userID, sessionID, role, content string) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.UserID != userID {
		return models.ChatMessage{}, models.ErrSessionNotFound
	}

	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	session.UpdatedAt = msg.Timestamp
	if session.Title == "" && role == "user" {
		session.Title = sessionTitle(content)
	}
	s.sessions[sessionID] = session
	return msg, nil
}

func (s *InMemoryStore) ListChatMessages(userID, sessionID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.UserID != userID {
		return nil, models.ErrSessionNotFound
	}
	messages := make([]models.ChatMessage, len(s.messages[sessionID]))
	copy(messages, s.messages[sessionID])
	return messages, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// sessionTitle derives a short session title from the first user message.
func sessionTitle(content string) string {
	const maxTitleLength = 60
	title := strings.TrimSpace(content)
	if len(title) > maxTitleLength {
		title = strings.TrimSpace(title[:maxTitleLength])
	}
	return title
}
