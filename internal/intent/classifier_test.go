package intent

import (
	"context"
	"fmt"
	"testing"

	"github.com/BTreeMap/HabitChat/internal/models"
)

// fakeGenAIClient returns a canned reply or error for classifier tests.
type fakeGenAIClient struct {
	reply string
	err   error
}

func (f *fakeGenAIClient) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.reply, f.err
}

func TestClassifySuccess(t *testing.T) {
	c := NewClassifier(&fakeGenAIClient{
		reply: `{"intent": "SHOW_HABITS", "parameters": {}, "confidence": 0.95}`,
	})
	got := c.Classify(context.Background(), "show habits")
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Type != models.IntentShowHabits {
		t.Errorf("intent = %s, want SHOW_HABITS", got.Type)
	}
	if got.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.Confidence)
	}
}

func TestClassifyStripsCodeFences(t *testing.T) {
	reply := "```json\n{\"intent\": \"DELETE_ALL\", \"parameters\": {}, \"confidence\": 0.9}\n```"
	c := NewClassifier(&fakeGenAIClient{reply: reply})
	got := c.Classify(context.Background(), "delete all")
	if got == nil || got.Type != models.IntentDeleteAll {
		t.Fatalf("fenced reply not parsed: %v", got)
	}
}

func TestClassifyToleratesSurroundingProse(t *testing.T) {
	reply := `Sure! Here is the classification: {"intent": "GREETING", "parameters": {}, "confidence": 0.9} Hope that helps.`
	c := NewClassifier(&fakeGenAIClient{reply: reply})
	got := c.Classify(context.Background(), "hello")
	if got == nil || got.Type != models.IntentGreeting {
		t.Fatalf("prose-wrapped reply not parsed: %v", got)
	}
}

func TestClassifyTransportErrorReturnsNil(t *testing.T) {
	c := NewClassifier(&fakeGenAIClient{err: fmt.Errorf("connection refused")})
	if got := c.Classify(context.Background(), "show habits"); got != nil {
		t.Errorf("expected nil on transport error, got %v", got)
	}
}

func TestClassifyMalformedJSONReturnsNil(t *testing.T) {
	c := NewClassifier(&fakeGenAIClient{reply: "I could not decide."})
	if got := c.Classify(context.Background(), "show habits"); got != nil {
		t.Errorf("expected nil on malformed reply, got %v", got)
	}
}

func TestClassifyLowConfidenceReturnsNil(t *testing.T) {
	c := NewClassifier(&fakeGenAIClient{
		reply: `{"intent": "SHOW_HABITS", "parameters": {}, "confidence": 0.5}`,
	})
	if got := c.Classify(context.Background(), "show habits"); got != nil {
		t.Errorf("expected nil at threshold confidence, got %v", got)
	}
}

func TestClassifyUnknownIntentLabelReturnsNil(t *testing.T) {
	c := NewClassifier(&fakeGenAIClient{
		reply: `{"intent": "LAUNCH_ROCKET", "parameters": {}, "confidence": 0.99}`,
	})
	if got := c.Classify(context.Background(), "launch"); got != nil {
		t.Errorf("expected nil for out-of-vocabulary intent, got %v", got)
	}
}

func TestClassifyCleansExtractedParameters(t *testing.T) {
	c := NewClassifier(&fakeGenAIClient{
		reply: `{"intent": "CREATE_HABIT", "parameters": {"name": "create habit cricket", "description": "description every sunday"}, "confidence": 0.9}`,
	})
	got := c.Classify(context.Background(), "create habit cricket description every sunday")
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Param(models.ParamName) != "Cricket" {
		t.Errorf("name = %q, want Cricket (stop-words removed)", got.Param(models.ParamName))
	}
	if got.Param(models.ParamDescription) != "Every sunday" {
		t.Errorf("description = %q, want %q", got.Param(models.ParamDescription), "Every sunday")
	}
}

func TestClassifyLeavesHabitNameUntouched(t *testing.T) {
	// habit_name must match existing data, so cleaning never rewrites it.
	c := NewClassifier(&fakeGenAIClient{
		reply: `{"intent": "DELETE_HABIT", "parameters": {"habit_name": "new habit tracker"}, "confidence": 0.9}`,
	})
	got := c.Classify(context.Background(), "delete new habit tracker")
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Param(models.ParamHabitName) != "new habit tracker" {
		t.Errorf("habit_name = %q, want raw value", got.Param(models.ParamHabitName))
	}
}

func TestClassifyNilClientReturnsNil(t *testing.T) {
	c := NewClassifier(nil)
	if got := c.Classify(context.Background(), "anything"); got != nil {
		t.Errorf("expected nil with no client, got %v", got)
	}
}

func TestClassifySkipsNonStringParameters(t *testing.T) {
	c := NewClassifier(&fakeGenAIClient{
		reply: `{"intent": "CREATE_HABIT", "parameters": {"name": "Gym", "count": 3}, "confidence": 0.9}`,
	})
	got := c.Classify(context.Background(), "gym")
	if got == nil {
		t.Fatal("expected a result")
	}
	if _, exists := got.Parameters["count"]; exists {
		t.Error("non-string parameter should be dropped")
	}
	if got.Param(models.ParamName) != "Gym" {
		t.Errorf("name = %q, want Gym", got.Param(models.ParamName))
	}
}
