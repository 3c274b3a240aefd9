package confirm

import (
	"strings"
	"testing"
	"time"
)

// fakeClock is a controllable time source for expiry tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	return NewStore(WithClock(clock.Now)), clock
}

func TestCreateAndGet(t *testing.T) {
	store, _ := newTestStore()

	store.Create("user1", ActionDeleteAllHabits, "")
	p, expired := store.Get("user1")
	if p == nil {
		t.Fatal("expected pending confirmation")
	}
	if expired {
		t.Error("fresh confirmation must not read as expired")
	}
	if p.Action != ActionDeleteAllHabits {
		t.Errorf("action = %s, want DELETE_ALL_HABITS", p.Action)
	}
	if got := p.ExpiresAt.Sub(p.CreatedAt); got != DefaultExpiry {
		t.Errorf("expiry window = %v, want %v", got, DefaultExpiry)
	}
}

func TestGetUnknownUser(t *testing.T) {
	store, _ := newTestStore()
	p, expired := store.Get("nobody")
	if p != nil || expired {
		t.Errorf("expected (nil, false) for unknown user, got (%v, %v)", p, expired)
	}
}

func TestGetEvictsExpired(t *testing.T) {
	store, clock := newTestStore()

	store.Create("user1", ActionDeleteAllHabits, "")
	clock.Advance(59 * time.Second)
	if p, _ := store.Get("user1"); p == nil {
		t.Fatal("confirmation should still be live at 59s")
	}

	clock.Advance(2 * time.Second) // 61s total
	p, expired := store.Get("user1")
	if p != nil || !expired {
		t.Errorf("expected (nil, true) at 61s, got (%v, %v)", p, expired)
	}
	// Eviction is permanent: the expiry signal fires only once.
	p, expired = store.Get("user1")
	if p != nil || expired {
		t.Errorf("expected (nil, false) on repeat read, got (%v, %v)", p, expired)
	}
}

func TestGetLiveAtExactBoundary(t *testing.T) {
	store, clock := newTestStore()

	// The entry is actionable up to and including expires_at; it is expired
	// only strictly after.
	store.Create("user1", ActionResetStreak, "")
	clock.Advance(DefaultExpiry)
	if p, expired := store.Get("user1"); p == nil || expired {
		t.Errorf("confirmation at exact expiry should still be live, got (%v, %v)", p, expired)
	}

	clock.Advance(time.Nanosecond)
	if p, expired := store.Get("user1"); p != nil || !expired {
		t.Errorf("confirmation past expiry should be gone, got (%v, %v)", p, expired)
	}
}

func TestCreateLastWriteWins(t *testing.T) {
	store, _ := newTestStore()

	store.Create("user1", ActionDeleteHabit, "Cricket")
	store.Create("user1", ActionDeleteAllHabits, "")

	p, _ := store.Get("user1")
	if p == nil {
		t.Fatal("expected pending confirmation")
	}
	if p.Action != ActionDeleteAllHabits {
		t.Errorf("action = %s, want the newer DELETE_ALL_HABITS", p.Action)
	}
}

func TestClear(t *testing.T) {
	store, _ := newTestStore()

	store.Create("user1", ActionDeleteAllHabits, "")
	store.Clear("user1")
	if p, expired := store.Get("user1"); p != nil || expired {
		t.Errorf("expected (nil, false) after Clear, got (%v, %v)", p, expired)
	}
	// Clearing an absent entry is a no-op.
	store.Clear("user2")
}

func TestStoreIsolatesUsers(t *testing.T) {
	store, _ := newTestStore()

	store.Create("user1", ActionDeleteAllHabits, "")
	if p, _ := store.Get("user2"); p != nil {
		t.Errorf("user2 should have no pending confirmation, got %v", p)
	}
	store.Clear("user2")
	if p, _ := store.Get("user1"); p == nil {
		t.Error("user1's confirmation should survive user2's Clear")
	}
}

func TestDetectDestructiveAction(t *testing.T) {
	tests := []struct {
		message string
		action  ActionType
		want    bool
	}{
		{"delete all my habits", ActionDeleteAllHabits, true},
		{"DELETE ALL", ActionDeleteAllHabits, true},
		{"please delete everything", ActionDeleteAllHabits, true},
		{"remove all habits", ActionDeleteAllHabits, true},
		{"start fresh", ActionDeleteAllHabits, true},
		{"i want to start over", ActionResetStreak, true},
		{"reset my streak", ActionResetStreak, true},
		{"reset streak please", ActionResetStreak, true},
		{"clear streak", ActionResetStreak, true},
		{"clear my completions", ActionClearCompletions, true},
		{"delete completions", ActionClearCompletions, true},
		{"remove all completions", ActionClearCompletions, true},
		{"clear my progress", ActionClearCompletions, true},
		{"delete cricket", "", false},
		{"remove the gym habit", "", false},
		{"show my habits", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		action, got := DetectDestructiveAction(tt.message)
		if got != tt.want || action != tt.action {
			t.Errorf("DetectDestructiveAction(%q) = (%s, %v), want (%s, %v)",
				tt.message, action, got, tt.action, tt.want)
		}
	}
}

func TestIsSingleItemDeletion(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"delete cricket", true},
		{"remove my gym habit", true},
		{"cricket hatao", true},
		{"delete all habits", false},
		{"delete everything", false},
		{"sab habits delete karo", false},
		{"delete completions", false},
		{"remove my streak", false},
		{"delete my progress", false},
		{"show habits", false},
	}
	for _, tt := range tests {
		if got := IsSingleItemDeletion(tt.message); got != tt.want {
			t.Errorf("IsSingleItemDeletion(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestIsConfirmation(t *testing.T) {
	for _, msg := range []string{"confirm", "CONFIRM", "yes", "yes please", "go ahead", "do it", "i confirm", "haan"} {
		if !IsConfirmation(msg) {
			t.Errorf("IsConfirmation(%q) = false, want true", msg)
		}
	}
	for _, msg := range []string{"show habits", "maybe", "delete cricket", ""} {
		if IsConfirmation(msg) {
			t.Errorf("IsConfirmation(%q) = true, want false", msg)
		}
	}
}

func TestIsCancellation(t *testing.T) {
	for _, msg := range []string{"cancel", "no", "No way", "nevermind", "never mind", "stop", "abort", "don't", "nahi"} {
		if !IsCancellation(msg) {
			t.Errorf("IsCancellation(%q) = false, want true", msg)
		}
	}
	for _, msg := range []string{"confirm", "i know", "nothing special", "show habits"} {
		if IsCancellation(msg) {
			t.Errorf("IsCancellation(%q) = true, want false", msg)
		}
	}
}

func TestConfirmationPromptNamesBothReplies(t *testing.T) {
	for _, action := range []ActionType{ActionDeleteAllHabits, ActionDeleteHabit, ActionResetStreak, ActionClearCompletions} {
		prompt := strings.ToLower(ConfirmationPrompt(action, "Cricket"))
		if !strings.Contains(prompt, "confirm") || !strings.Contains(prompt, "cancel") {
			t.Errorf("ConfirmationPrompt(%s) must mention both confirm and cancel: %q", action, prompt)
		}
	}
}

func TestExpiryMessageDiffersFromCancellation(t *testing.T) {
	if ExpiryMessage(ActionDeleteAllHabits) == CancellationMessage(ActionDeleteAllHabits) {
		t.Error("expiry and cancellation replies must be distinguishable")
	}
}
