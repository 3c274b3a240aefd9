// Package models defines the core data structures for HabitChat.
//
// It includes types for habits, completions, detected intents, and chat
// sessions, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// IntentType identifies the action a user wants performed.
type IntentType string

const (
	// IntentCreateHabit creates a new habit from extracted name/description.
	IntentCreateHabit IntentType = "CREATE_HABIT"
	// IntentShowHabits lists the user's habits.
	IntentShowHabits IntentType = "SHOW_HABITS"
	// IntentUpdateHabit updates a habit's name or description.
	IntentUpdateHabit IntentType = "UPDATE_HABIT"
	// IntentDeleteHabit deletes a single named habit.
	IntentDeleteHabit IntentType = "DELETE_HABIT"
	// IntentDeleteAll deletes every habit the user has.
	IntentDeleteAll IntentType = "DELETE_ALL"
	// IntentSelectHabit selects a habit and shows its details.
	IntentSelectHabit IntentType = "SELECT_HABIT"
	// IntentLogCompletion records a completion for a habit.
	IntentLogCompletion IntentType = "LOG_COMPLETION"
	// IntentCheckStreak reports current streaks.
	IntentCheckStreak IntentType = "CHECK_STREAK"
	// IntentHelp shows usage guidance.
	IntentHelp IntentType = "HELP"
	// IntentGreeting responds to a greeting.
	IntentGreeting IntentType = "GREETING"
	// IntentUnknown is the zero-confidence fallback.
	IntentUnknown IntentType = "UNKNOWN"
)

// IsValidIntentType checks if the given intent type is part of the vocabulary.
func IsValidIntentType(it IntentType) bool {
	switch it {
	case IntentCreateHabit, IntentShowHabits, IntentUpdateHabit, IntentDeleteHabit,
		IntentDeleteAll, IntentSelectHabit, IntentLogCompletion, IntentCheckStreak,
		IntentHelp, IntentGreeting, IntentUnknown:
		return true
	default:
		return false
	}
}

// Parameter keys used in Intent.Parameters.
const (
	// ParamName is the habit name extracted for creation.
	ParamName = "name"
	// ParamDescription is the habit description extracted for creation.
	ParamDescription = "description"
	// ParamHabitName references an existing habit; never rewritten by cleaning.
	ParamHabitName = "habit_name"
	// ParamNewName is the replacement name for updates.
	ParamNewName = "new_name"
	// ParamNewDescription is the replacement description for updates.
	ParamNewDescription = "new_description"
)

// Intent is the classified action for one message: a type, extracted string
// parameters (all optional, empty-string default), and a confidence in [0, 1].
// Produced once per message and never mutated.
type Intent struct {
	Type       IntentType        `json:"intent"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Confidence float64           `json:"confidence"`
}

// Param returns the named parameter or "" if absent.
func (i Intent) Param(key string) string {
	if i.Parameters == nil {
		return ""
	}
	return i.Parameters[key]
}

// Validation constants for habit input.
const (
	// MaxHabitNameLength defines the maximum allowed length for a habit name.
	MaxHabitNameLength = 100
	// MaxHabitDescriptionLength defines the maximum allowed length for a habit description.
	MaxHabitDescriptionLength = 500
)

// Error variables for better error handling and testability.
var (
	ErrEmptyUserID          = errors.New("user id cannot be empty")
	ErrEmptyMessage         = errors.New("message cannot be empty")
	ErrEmptyHabitName       = errors.New("habit name cannot be empty")
	ErrHabitNameTooLong     = errors.New("habit name exceeds maximum length")
	ErrDescriptionTooLong   = errors.New("habit description exceeds maximum length")
	ErrHabitNotFound        = errors.New("habit not found")
	ErrSessionNotFound      = errors.New("conversation not found")
	ErrInvalidCompletionDay = errors.New("completion date cannot be in the future")
)

// Habit is the read view of a stored habit. The engine treats it as an
// immutable snapshot valid for one orchestration pass; Streak is precomputed
// by the persistence layer at read time.
type Habit struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Streak      int       `json:"streak"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Completion records whether a habit was done on a calendar day.
type Completion struct {
	ID      string    `json:"id"`
	HabitID string    `json:"habit_id"`
	Date    time.Time `json:"date"` // normalized to midnight UTC
	Status  bool      `json:"status"`
	Note    string    `json:"note,omitempty"`
}

// Day normalizes a timestamp to midnight UTC so completions compare as
// calendar days.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ChatSession groups the messages of one conversation.
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one persisted message in a session.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is the transport-facing chat payload.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Validate checks the chat request for required fields.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// ChatReply is the engine's answer to one message: response text plus
// follow-up suggestions. All persistence side effects have already happened
// by the time a ChatReply is returned.
type ChatReply struct {
	Content     string   `json:"content"`
	Suggestions []string `json:"suggestions"`
}

// ChatResponse is the transport-facing chat result.
type ChatResponse struct {
	ConversationID string      `json:"conversation_id"`
	Message        ChatMessage `json:"message"`
	Suggestions    []string    `json:"suggestions"`
}

// HabitCreateRequest is the transport-facing habit creation payload.
type HabitCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Validate checks habit creation fields.
func (r *HabitCreateRequest) Validate() error {
	if r.Name == "" {
		return ErrEmptyHabitName
	}
	if len(r.Name) > MaxHabitNameLength {
		return ErrHabitNameTooLong
	}
	if len(r.Description) > MaxHabitDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// HabitUpdateRequest is the transport-facing habit update payload. Nil fields
// are left unchanged.
type HabitUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate checks habit update fields.
func (r *HabitUpdateRequest) Validate() error {
	if r.Name != nil {
		if *r.Name == "" {
			return ErrEmptyHabitName
		}
		if len(*r.Name) > MaxHabitNameLength {
			return ErrHabitNameTooLong
		}
	}
	if r.Description != nil && len(*r.Description) > MaxHabitDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// CompletionLogRequest is the transport-facing completion payload.
type CompletionLogRequest struct {
	Date   string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	Status bool   `json:"status"`
	Note   string `json:"note,omitempty"`
}

// StreakReport is the transport-facing streak summary for one habit.
type StreakReport struct {
	HabitID string `json:"habit_id"`
	Name    string `json:"name"`
	Current int    `json:"current"`
	Longest int    `json:"longest"`
}
