// Package chat implements the dialogue engine: it turns a raw user message
// into an intent, routes destructive requests through the confirmation gate,
// resolves habit references against stored data, applies the resulting
// persistence operation, and produces the reply text with follow-up
// suggestions.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/HabitChat/internal/confirm"
	"github.com/BTreeMap/HabitChat/internal/intent"
	"github.com/BTreeMap/HabitChat/internal/models"
	"github.com/BTreeMap/HabitChat/internal/store"
	"github.com/BTreeMap/HabitChat/internal/streak"
)

// IntentClassifier is the probabilistic intent source. A nil result means
// the caller should fall back to the deterministic parser.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) *models.Intent
}

// Opts holds optional parameters for the engine.
type Opts struct {
	Classifier    IntentClassifier
	Confirmations *confirm.Store
}

// Option configures the engine.
type Option func(*Opts)

// WithClassifier enables language-model intent classification. Without it
// the engine runs on the keyword parser alone.
func WithClassifier(c IntentClassifier) Option {
	return func(o *Opts) {
		o.Classifier = c
	}
}

// WithConfirmations overrides the confirmation store. Used in tests to
// inject a fake clock.
func WithConfirmations(s *confirm.Store) Option {
	return func(o *Opts) {
		o.Confirmations = s
	}
}

// Engine orchestrates one message exchange at a time. It holds no per-user
// conversational state beyond the pending confirmations.
type Engine struct {
	store         store.Store
	classifier    IntentClassifier
	confirmations *confirm.Store
}

// NewEngine creates a dialogue engine backed by the given store.
func NewEngine(st store.Store, options ...Option) *Engine {
	var opts Opts
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Confirmations == nil {
		opts.Confirmations = confirm.NewStore()
	}
	return &Engine{
		store:         st,
		classifier:    opts.Classifier,
		confirmations: opts.Confirmations,
	}
}

// Handle processes one user message and returns the reply. All persistence
// side effects have completed by the time it returns.
func (e *Engine) Handle(ctx context.Context, userID, message string) (models.ChatReply, error) {
	if userID == "" {
		return models.ChatReply{}, models.ErrEmptyUserID
	}
	if strings.TrimSpace(message) == "" {
		return models.ChatReply{}, models.ErrEmptyMessage
	}

	// A pending confirmation captures the next message before any intent
	// detection runs. Cancellation is checked first so "no, cancel" can
	// never read as approval.
	pending, expired := e.confirmations.Get(userID)
	if expired && (confirm.IsConfirmation(message) || confirm.IsCancellation(message)) {
		slog.Debug("Engine.Handle: reply to expired confirmation", "userID", userID)
		return models.ChatReply{
			Content:     confirm.ExpiryMessage(""),
			Suggestions: suggestionsFor(models.IntentShowHabits),
		}, nil
	}
	trimmed := strings.ToLower(strings.TrimSpace(message))
	if pending == nil && !expired && (trimmed == "confirm" || trimmed == "cancel") {
		return models.ChatReply{
			Content:     "There's nothing waiting for confirmation right now.",
			Suggestions: suggestionsFor(models.IntentHelp),
		}, nil
	}
	if pending != nil {
		switch {
		case confirm.IsCancellation(message):
			e.confirmations.Clear(userID)
			slog.Debug("Engine.Handle: pending confirmation cancelled", "userID", userID, "action", pending.Action)
			return models.ChatReply{
				Content:     confirm.CancellationMessage(pending.Action),
				Suggestions: suggestionsFor(models.IntentShowHabits),
			}, nil
		case confirm.IsConfirmation(message):
			e.confirmations.Clear(userID)
			slog.Debug("Engine.Handle: pending confirmation approved", "userID", userID, "action", pending.Action)
			return e.executeConfirmed(userID, pending)
		default:
			// Any other message is processed as a fresh request. The
			// pending entry is left in place: the user can still reply
			// "confirm" until it expires, and lazy eviction collects it
			// otherwise.
			slog.Debug("Engine.Handle: unrelated message while confirmation pending", "userID", userID, "action", pending.Action)
		}
	}

	detected := e.detectIntent(ctx, userID, message)
	slog.Debug("Engine.Handle: intent detected", "userID", userID, "intent", detected.Type, "confidence", detected.Confidence)

	// Destructive requests are parked behind a confirmation regardless of
	// which intent path produced them. Single-habit deletions execute
	// immediately and are not gated.
	if action, destructive := confirm.DetectDestructiveAction(message); destructive {
		return e.gateDestructive(userID, action)
	}
	if detected.Type == models.IntentDeleteAll {
		return e.gateDestructive(userID, confirm.ActionDeleteAllHabits)
	}

	return e.dispatch(userID, message, detected)
}

// detectIntent consults the classifier first and falls back to the keyword
// parser when the classifier is absent or declines to answer. The parser
// sees the user's habits so it can resolve targets in the same pass.
func (e *Engine) detectIntent(ctx context.Context, userID, message string) *models.Intent {
	if e.classifier != nil {
		if result := e.classifier.Classify(ctx, message); result != nil {
			return result
		}
	}
	habits, err := e.store.ListHabits(userID)
	if err != nil {
		slog.Error("Engine.detectIntent: listing habits for parser failed", "userID", userID, "error", err)
		habits = nil
	}
	parsed := intent.Parse(message, habits)
	return &parsed
}

// gateDestructive parks a destructive action and asks for confirmation.
func (e *Engine) gateDestructive(userID string, action confirm.ActionType) (models.ChatReply, error) {
	e.confirmations.Create(userID, action, "")
	slog.Debug("Engine.gateDestructive: confirmation required", "userID", userID, "action", action)
	return models.ChatReply{
		Content:     confirm.ConfirmationPrompt(action, ""),
		Suggestions: []string{"confirm", "cancel"},
	}, nil
}

// executeConfirmed runs the approved destructive action.
func (e *Engine) executeConfirmed(userID string, pending *confirm.PendingConfirmation) (models.ChatReply, error) {
	switch pending.Action {
	case confirm.ActionDeleteAllHabits:
		count, err := e.store.DeleteAllHabits(userID)
		if err != nil {
			return models.ChatReply{}, fmt.Errorf("failed to delete all habits for %s: %w", userID, err)
		}
		content := fmt.Sprintf("Done. Deleted %d habit(s). You have a clean slate now.", count)
		if count == 0 {
			content = "You had no habits to delete. You're starting fresh either way!"
		}
		return models.ChatReply{Content: content, Suggestions: suggestionsFor(models.IntentCreateHabit)}, nil

	case confirm.ActionDeleteHabit:
		habits, err := e.store.ListHabits(userID)
		if err != nil {
			return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
		}
		target := intent.Resolve(habits, pending.Target)
		if target == nil {
			return models.ChatReply{
				Content:     fmt.Sprintf("I couldn't find a habit called '%s' anymore, so nothing was deleted.", pending.Target),
				Suggestions: suggestionsFor(models.IntentShowHabits),
			}, nil
		}
		if err := e.store.DeleteHabit(userID, target.ID); err != nil {
			return models.ChatReply{}, fmt.Errorf("failed to delete habit %s: %w", target.ID, err)
		}
		return models.ChatReply{
			Content:     fmt.Sprintf("Deleted '%s' and its history.", target.Name),
			Suggestions: suggestionsFor(models.IntentShowHabits),
		}, nil

	case confirm.ActionResetStreak, confirm.ActionClearCompletions:
		habits, err := e.store.ListHabits(userID)
		if err != nil {
			return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
		}
		cleared := 0
		var failures []string
		for _, h := range habits {
			if pending.Target != "" && !intent.ResolveExact([]models.Habit{h}, pending.Target) {
				continue
			}
			if err := e.store.DeleteCompletions(userID, h.ID); err != nil {
				slog.Error("Engine.executeConfirmed: clearing completions failed", "habitID", h.ID, "error", err)
				failures = append(failures, h.Name)
				continue
			}
			cleared++
		}
		if len(failures) > 0 {
			return models.ChatReply{
				Content:     fmt.Sprintf("Cleared history for %d habit(s), but %s could not be cleared. Try again in a moment.", cleared, strings.Join(failures, ", ")),
				Suggestions: suggestionsFor(models.IntentShowHabits),
			}, nil
		}
		return models.ChatReply{
			Content:     fmt.Sprintf("Cleared the history for %d habit(s). Every streak starts at zero now.", cleared),
			Suggestions: suggestionsFor(models.IntentLogCompletion),
		}, nil
	}

	return models.ChatReply{
		Content:     "That action is no longer available, so nothing was changed.",
		Suggestions: suggestionsFor(models.IntentHelp),
	}, nil
}

// dispatch routes a detected intent to its handler.
func (e *Engine) dispatch(userID, message string, detected *models.Intent) (models.ChatReply, error) {
	switch detected.Type {
	case models.IntentGreeting:
		return e.handleGreeting(userID)
	case models.IntentHelp:
		return replyFor(models.IntentHelp, helpText), nil
	case models.IntentCreateHabit:
		return e.handleCreate(userID, detected)
	case models.IntentShowHabits:
		return e.handleShow(userID)
	case models.IntentUpdateHabit:
		return e.handleUpdate(userID, detected)
	case models.IntentDeleteHabit:
		return e.handleDelete(userID, message, detected)
	case models.IntentSelectHabit:
		return e.handleSelect(userID, message, detected)
	case models.IntentLogCompletion:
		return e.handleLogCompletion(userID, message, detected)
	case models.IntentCheckStreak:
		return e.handleCheckStreak(userID, message, detected)
	default:
		return replyFor(models.IntentUnknown, unknownText), nil
	}
}

func (e *Engine) handleGreeting(userID string) (models.ChatReply, error) {
	habits, err := e.store.ListHabits(userID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
	}
	if len(habits) == 0 {
		return replyFor(models.IntentGreeting,
			"Hey! I'm your habit assistant. You don't have any habits yet. Tell me one to get started, like 'create habit morning walk'."), nil
	}
	return replyFor(models.IntentGreeting,
		fmt.Sprintf("Hey! Good to see you. You're tracking %d habit(s) right now. What would you like to do?", len(habits))), nil
}

func (e *Engine) handleCreate(userID string, detected *models.Intent) (models.ChatReply, error) {
	name := detected.Param(models.ParamName)
	if name == "" {
		return replyFor(models.IntentCreateHabit,
			"Sure, let's create a habit. What should I call it?"), nil
	}
	if len(name) > models.MaxHabitNameLength {
		return replyFor(models.IntentCreateHabit,
			"That name is a bit long for me. Could you shorten it?"), nil
	}
	description := detected.Param(models.ParamDescription)
	if len(description) > models.MaxHabitDescriptionLength {
		return replyFor(models.IntentCreateHabit,
			"That description is too long. Could you trim it down?"), nil
	}

	habits, err := e.store.ListHabits(userID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
	}
	if intent.ResolveExact(habits, name) {
		return replyFor(models.IntentShowHabits,
			fmt.Sprintf("You already have a habit called '%s'. Want to log a completion for it instead?", name)), nil
	}

	created, err := e.store.CreateHabit(userID, name, description)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to create habit for %s: %w", userID, err)
	}
	content := fmt.Sprintf("Created '%s'.", created.Name)
	if created.Description != "" {
		content = fmt.Sprintf("Created '%s' (%s).", created.Name, created.Description)
	}
	return replyFor(models.IntentCreateHabit, content+" Tell me when you've done it and I'll track your streak."), nil
}

func (e *Engine) handleShow(userID string) (models.ChatReply, error) {
	habits, err := e.store.ListHabits(userID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
	}
	if len(habits) == 0 {
		return replyFor(models.IntentCreateHabit,
			"You don't have any habits yet. Tell me one to get started!"), nil
	}

	var b strings.Builder
	b.WriteString("Here's what you're tracking:\n")
	for i, h := range habits {
		fmt.Fprintf(&b, "%d. %s", i+1, h.Name)
		if h.Description != "" {
			fmt.Fprintf(&b, " - %s", h.Description)
		}
		fmt.Fprintf(&b, " (streak: %d)\n", h.Streak)
	}
	return replyFor(models.IntentShowHabits, strings.TrimRight(b.String(), "\n")), nil
}

func (e *Engine) handleUpdate(userID string, detected *models.Intent) (models.ChatReply, error) {
	habits, err := e.store.ListHabits(userID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
	}
	if len(habits) == 0 {
		return replyFor(models.IntentCreateHabit,
			"You don't have any habits to update yet."), nil
	}

	target := intent.Resolve(habits, detected.Param(models.ParamHabitName))
	if target == nil {
		return clarifyTarget(habits, "update"), nil
	}

	var name, description *string
	if v := detected.Param(models.ParamNewName); v != "" {
		name = &v
	}
	if v := detected.Param(models.ParamNewDescription); v != "" {
		description = &v
	}
	if name == nil && description == nil {
		return replyFor(models.IntentUpdateHabit,
			fmt.Sprintf("What should I change about '%s'? You can give it a new name or a new description.", target.Name)), nil
	}

	updated, err := e.store.UpdateHabit(userID, target.ID, name, description)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to update habit %s: %w", target.ID, err)
	}
	return replyFor(models.IntentUpdateHabit,
		fmt.Sprintf("Updated '%s'. It's now '%s' (%s).", target.Name, updated.Name, orNone(updated.Description))), nil
}

func (e *Engine) handleDelete(userID, message string, detected *models.Intent) (models.ChatReply, error) {
	habits, err := e.store.ListHabits(userID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
	}
	if len(habits) == 0 {
		return replyFor(models.IntentCreateHabit,
			"You don't have any habits to delete."), nil
	}

	term := detected.Param(models.ParamHabitName)
	if term == "" {
		term = intent.FindHabitInMessage(message, habits)
	}
	target := intent.Resolve(habits, term)
	if target == nil {
		return clarifyTarget(habits, "delete"), nil
	}

	// Deleting one habit is a routine correction, not a bulk wipe, so it
	// executes immediately without a confirmation round trip.
	if err := e.store.DeleteHabit(userID, target.ID); err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to delete habit %s: %w", target.ID, err)
	}
	return replyFor(models.IntentDeleteHabit,
		fmt.Sprintf("Deleted '%s' and its history.", target.Name)), nil
}

func (e *Engine) handleSelect(userID, message string, detected *models.Intent) (models.ChatReply, error) {
	habits, err := e.store.ListHabits(userID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
	}
	if len(habits) == 0 {
		return replyFor(models.IntentCreateHabit,
			"You don't have any habits yet. Tell me one to get started!"), nil
	}

	term := detected.Param(models.ParamHabitName)
	if term == "" {
		term = intent.FindHabitInMessage(message, habits)
	}
	target := intent.Resolve(habits, term)
	if target == nil {
		return clarifyTarget(habits, "look at"), nil
	}

	content := fmt.Sprintf("'%s'", target.Name)
	if target.Description != "" {
		content += fmt.Sprintf(" - %s", target.Description)
	}
	content += fmt.Sprintf(". Current streak: %d day(s).", target.Streak)
	return replyFor(models.IntentSelectHabit, content), nil
}

func (e *Engine) handleLogCompletion(userID, message string, detected *models.Intent) (models.ChatReply, error) {
	habits, err := e.store.ListHabits(userID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
	}
	if len(habits) == 0 {
		return replyFor(models.IntentCreateHabit,
			"You don't have any habits yet. Create one first, then tell me when you've done it!"), nil
	}

	term := detected.Param(models.ParamHabitName)
	if term == "" {
		term = intent.FindHabitInMessage(message, habits)
	}
	target := intent.Resolve(habits, term)
	if target == nil {
		if len(habits) == 1 {
			// Only one habit: the completion can't be ambiguous.
			target = &habits[0]
		} else {
			return clarifyTarget(habits, "log"), nil
		}
	}

	if _, err := e.store.LogCompletion(userID, target.ID, timeNow(), true, ""); err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to log completion for habit %s: %w", target.ID, err)
	}
	updated, err := e.store.GetHabit(userID, target.ID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to reload habit %s: %w", target.ID, err)
	}
	return replyFor(models.IntentLogCompletion,
		fmt.Sprintf("Nice work! Logged '%s' for today. Your streak is now %d day(s).", updated.Name, updated.Streak)), nil
}

func (e *Engine) handleCheckStreak(userID, message string, detected *models.Intent) (models.ChatReply, error) {
	habits, err := e.store.ListHabits(userID)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("failed to list habits for %s: %w", userID, err)
	}
	if len(habits) == 0 {
		return replyFor(models.IntentCreateHabit,
			"No habits, no streaks yet. Create one and start your first streak!"), nil
	}

	term := detected.Param(models.ParamHabitName)
	if term == "" {
		term = intent.FindHabitInMessage(message, habits)
	}
	if target := intent.Resolve(habits, term); target != nil {
		completions, err := e.store.ListCompletions(userID, target.ID)
		if err != nil {
			return models.ChatReply{}, fmt.Errorf("failed to list completions for habit %s: %w", target.ID, err)
		}
		longest := streak.Longest(completions)
		return replyFor(models.IntentCheckStreak,
			fmt.Sprintf("'%s': current streak %d day(s), longest ever %d day(s).", target.Name, target.Streak, longest)), nil
	}

	var b strings.Builder
	b.WriteString("Your streaks:\n")
	for _, h := range habits {
		fmt.Fprintf(&b, "- %s: %d day(s)\n", h.Name, h.Streak)
	}
	return replyFor(models.IntentCheckStreak, strings.TrimRight(b.String(), "\n")), nil
}

// clarifyTarget asks the user which habit they meant, listing the candidates.
func clarifyTarget(habits []models.Habit, verb string) models.ChatReply {
	names := make([]string, len(habits))
	for i, h := range habits {
		names[i] = h.Name
	}
	return models.ChatReply{
		Content:     fmt.Sprintf("Which habit do you want to %s? You have: %s.", verb, strings.Join(names, ", ")),
		Suggestions: names,
	}
}

func orNone(s string) string {
	if s == "" {
		return "no description"
	}
	return s
}
