// Package confirm implements the time-boxed confirmation gate for
// destructive actions. A destructive request is parked as a pending
// confirmation keyed by user; the user must reply with an explicit
// confirmation within the expiry window or the action is dropped.
package confirm

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultExpiry is how long a pending confirmation stays actionable.
const DefaultExpiry = 60 * time.Second

// ActionType identifies the destructive operation awaiting confirmation.
type ActionType string

const (
	ActionDeleteAllHabits  ActionType = "DELETE_ALL_HABITS"
	ActionDeleteHabit      ActionType = "DELETE_HABIT"
	ActionResetStreak      ActionType = "RESET_STREAK"
	ActionClearCompletions ActionType = "CLEAR_COMPLETIONS"
)

// PendingConfirmation records a destructive action waiting on the user.
type PendingConfirmation struct {
	Action    ActionType
	Target    string // habit name for single-target actions, empty otherwise
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Opts holds optional parameters for Store.
type Opts struct {
	Expiry time.Duration
	Now    func() time.Time
}

// Option configures a Store.
type Option func(*Opts)

// WithExpiry overrides the confirmation window.
func WithExpiry(d time.Duration) Option {
	return func(o *Opts) {
		o.Expiry = d
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// Store tracks at most one pending confirmation per user. Entries past their
// expiry are evicted lazily on read; there is no background sweeper.
type Store struct {
	mu      sync.Mutex
	pending map[string]*PendingConfirmation
	expiry  time.Duration
	now     func() time.Time
}

// NewStore creates a confirmation store with the given options.
func NewStore(options ...Option) *Store {
	opts := Opts{
		Expiry: DefaultExpiry,
		Now:    time.Now,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &Store{
		pending: make(map[string]*PendingConfirmation),
		expiry:  opts.Expiry,
		now:     opts.Now,
	}
}

// Create registers a pending confirmation for the user, replacing any
// previous one. The newest request always wins.
func (s *Store) Create(userID string, action ActionType, target string) *PendingConfirmation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &PendingConfirmation{
		Action:    action,
		Target:    target,
		CreatedAt: now,
		ExpiresAt: now.Add(s.expiry),
	}
	s.pending[userID] = p
	slog.Debug("ConfirmStore.Create: pending confirmation registered", "userID", userID, "action", action, "target", target)
	return p
}

// Get returns the user's pending confirmation, or nil if none exists or it
// has expired. The second return value is true when an entry was present but
// past its window: it is evicted, and the caller can tell the user the
// action timed out rather than silently ignoring their reply.
func (s *Store) Get(userID string) (*PendingConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.pending[userID]
	if !exists {
		return nil, false
	}
	if s.now().After(p.ExpiresAt) {
		delete(s.pending, userID)
		slog.Debug("ConfirmStore.Get: expired confirmation evicted", "userID", userID, "action", p.Action)
		return nil, true
	}
	return p, false
}

// Clear removes the user's pending confirmation, if any.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
}

// destructivePhrases maps message substrings to the action they trigger.
// Completion and streak phrasings come before the broader delete-all
// phrasings so "remove all completions" clears history instead of habits.
var destructivePhrases = []struct {
	phrase string
	action ActionType
}{
	{"clear completions", ActionClearCompletions},
	{"clear my completions", ActionClearCompletions},
	{"delete completions", ActionClearCompletions},
	{"delete my completions", ActionClearCompletions},
	{"remove all completions", ActionClearCompletions},
	{"delete all completions", ActionClearCompletions},
	{"clear my progress", ActionClearCompletions},
	{"erase my progress", ActionClearCompletions},
	{"reset streak", ActionResetStreak},
	{"reset my streak", ActionResetStreak},
	{"reset the streak", ActionResetStreak},
	{"clear streak", ActionResetStreak},
	{"clear my streak", ActionResetStreak},
	{"start over", ActionResetStreak},
	{"delete all", ActionDeleteAllHabits},
	{"remove all", ActionDeleteAllHabits},
	{"clear all habits", ActionDeleteAllHabits},
	{"delete everything", ActionDeleteAllHabits},
	{"remove everything", ActionDeleteAllHabits},
	{"erase everything", ActionDeleteAllHabits},
	{"start fresh", ActionDeleteAllHabits},
}

// DetectDestructiveAction reports whether the message asks for a
// destructive operation and, if so, which one. Single-item deletions are
// deliberately not detected here: "delete cricket" executes immediately and
// only bulk or irreversible operations are gated.
func DetectDestructiveAction(message string) (ActionType, bool) {
	lower := strings.ToLower(message)
	if IsSingleItemDeletion(lower) {
		return "", false
	}
	for _, entry := range destructivePhrases {
		if strings.Contains(lower, entry.phrase) {
			return entry.action, true
		}
	}
	return "", false
}

// IsSingleItemDeletion reports whether the message targets one habit rather
// than the whole collection. A delete verb without an "all"/"everything"
// qualifier is single-item. Deletions aimed at completion history or streaks
// are not habit deletions and never qualify.
func IsSingleItemDeletion(message string) bool {
	lower := strings.ToLower(message)
	hasDeleteVerb := strings.Contains(lower, "delete") ||
		strings.Contains(lower, "remove") ||
		strings.Contains(lower, "hatao") ||
		strings.Contains(lower, "hata do")
	if !hasDeleteVerb {
		return false
	}
	for _, qualifier := range []string{"all", "everything", "every habit", "sab", "saare",
		"completion", "completions", "streak", "progress", "history"} {
		if containsWord(lower, qualifier) {
			return false
		}
	}
	return true
}

// confirmationWords are replies that approve a pending action.
var confirmationWords = []string{
	"confirm", "yes", "yeah", "yep", "sure", "ok", "okay",
	"do it", "go ahead", "i confirm", "haan", "han", "theek hai",
}

// cancellationWords are replies that abort a pending action. Checked before
// confirmations so "no, cancel" never reads as approval.
var cancellationWords = []string{
	"cancel", "no", "nope", "nevermind", "never mind", "stop",
	"abort", "don't", "do not", "dont", "nahi", "nahin", "rehne do",
}

// IsConfirmation reports whether the message approves a pending action.
func IsConfirmation(message string) bool {
	return matchesAny(message, confirmationWords)
}

// IsCancellation reports whether the message aborts a pending action.
func IsCancellation(message string) bool {
	return matchesAny(message, cancellationWords)
}

func matchesAny(message string, words []string) bool {
	lower := strings.TrimSpace(strings.ToLower(message))
	for _, w := range words {
		if lower == w || containsWord(lower, w) {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase appears in text on word boundaries,
// so "no" does not match inside "know" or "nothing".
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '\''
}

// ConfirmationPrompt builds the question shown to the user when an action is
// parked. Every variant names both the confirm and cancel replies.
func ConfirmationPrompt(action ActionType, target string) string {
	var what string
	switch action {
	case ActionDeleteAllHabits:
		what = "delete ALL of your habits and their history"
	case ActionDeleteHabit:
		what = "delete the habit '" + target + "'"
	case ActionResetStreak:
		what = "reset your streak to zero"
	case ActionClearCompletions:
		what = "clear your completion history"
	default:
		what = "perform this action"
	}
	return "This will " + what + ". This cannot be undone. Reply 'confirm' to proceed or 'cancel' to keep everything as it is."
}

// CancellationMessage acknowledges an aborted action.
func CancellationMessage(action ActionType) string {
	return "Okay, nothing was changed. Your habits are safe."
}

// ExpiryMessage tells the user their confirmation window lapsed. Distinct
// wording from cancellation so the user knows the action timed out rather
// than being declined.
func ExpiryMessage(action ActionType) string {
	return "That confirmation expired, so nothing was changed. Ask again if you still want to do it."
}
