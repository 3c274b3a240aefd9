package models

import (
	"strings"
	"testing"
	"time"
)

func TestIsValidIntentType(t *testing.T) {
	valid := []IntentType{
		IntentCreateHabit, IntentShowHabits, IntentUpdateHabit, IntentDeleteHabit,
		IntentDeleteAll, IntentSelectHabit, IntentLogCompletion, IntentCheckStreak,
		IntentHelp, IntentGreeting, IntentUnknown,
	}
	for _, it := range valid {
		if !IsValidIntentType(it) {
			t.Errorf("expected %q to be valid", it)
		}
	}
	if IsValidIntentType("DROP_TABLES") {
		t.Error("unexpected intent type accepted")
	}
}

func TestIntentParam(t *testing.T) {
	i := Intent{Type: IntentCreateHabit, Parameters: map[string]string{ParamName: "Cricket"}}
	if got := i.Param(ParamName); got != "Cricket" {
		t.Errorf("Param(name) = %q, want Cricket", got)
	}
	if got := i.Param(ParamDescription); got != "" {
		t.Errorf("Param(description) = %q, want empty", got)
	}
	var empty Intent
	if got := empty.Param(ParamName); got != "" {
		t.Errorf("Param on nil map = %q, want empty", got)
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2026, 3, 14, 22, 45, 1, 0, loc)
	d := Day(ts)
	if d.Hour() != 0 || d.Minute() != 0 || d.Second() != 0 {
		t.Errorf("Day not normalized to midnight: %v", d)
	}
	if d.Location() != time.UTC {
		t.Errorf("Day not in UTC: %v", d.Location())
	}
	// 22:45 EST on March 14 is March 15 UTC.
	if d.Day() != 15 {
		t.Errorf("expected UTC calendar day 15, got %d", d.Day())
	}
}

func TestChatRequestValidate(t *testing.T) {
	r := ChatRequest{}
	if err := r.Validate(); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	r.Message = "show my habits"
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHabitCreateRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  HabitCreateRequest
		want error
	}{
		{"empty name", HabitCreateRequest{}, ErrEmptyHabitName},
		{"name too long", HabitCreateRequest{Name: strings.Repeat("x", MaxHabitNameLength+1)}, ErrHabitNameTooLong},
		{"description too long", HabitCreateRequest{Name: "Gym", Description: strings.Repeat("x", MaxHabitDescriptionLength+1)}, ErrDescriptionTooLong},
		{"valid", HabitCreateRequest{Name: "Gym", Description: "Mon Wed Fri"}, nil},
	}
	for _, c := range cases {
		if err := c.req.Validate(); err != c.want {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestHabitUpdateRequestValidate(t *testing.T) {
	empty := ""
	long := strings.Repeat("x", MaxHabitNameLength+1)
	ok := "Evening Run"

	if err := (&HabitUpdateRequest{Name: &empty}).Validate(); err != ErrEmptyHabitName {
		t.Errorf("empty name: got %v", err)
	}
	if err := (&HabitUpdateRequest{Name: &long}).Validate(); err != ErrHabitNameTooLong {
		t.Errorf("long name: got %v", err)
	}
	if err := (&HabitUpdateRequest{Name: &ok}).Validate(); err != nil {
		t.Errorf("valid name: got %v", err)
	}
	if err := (&HabitUpdateRequest{}).Validate(); err != nil {
		t.Errorf("all-nil update should be valid: got %v", err)
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	resp := Success(map[string]int{"count": 3})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("Success status = %q", resp.Status)
	}
	resp = Error("boom")
	if resp.Status != string(APIStatusError) || resp.Message != "boom" {
		t.Errorf("Error response = %+v", resp)
	}
	resp = SuccessWithMessage("created", nil)
	if resp.Status != string(APIStatusOK) || resp.Message != "created" {
		t.Errorf("SuccessWithMessage response = %+v", resp)
	}
}
