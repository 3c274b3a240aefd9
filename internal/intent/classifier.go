// Package intent provides the GenAI-backed probabilistic classifier.
package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/HabitChat/internal/genai"
	"github.com/BTreeMap/HabitChat/internal/models"
)

// MinClassifierConfidence is the threshold below which a classifier result is
// discarded in favor of the deterministic parser.
const MinClassifierConfidence = 0.5

// DefaultClassifyTimeout bounds the language-model call so a slow endpoint
// degrades to the fallback parser instead of hanging the request.
const DefaultClassifyTimeout = 10 * time.Second

// classifierSystemPrompt instructs the model to extract clean names and
// descriptions and reply with a single JSON object.
const classifierSystemPrompt = `You are a habit assistant. Extract CLEAN name and description from the user message.

CRITICAL RULES:
1. NEVER include these words in name: "name", "habit", "create", "add", "banana", "banao", "make", "new"
2. NEVER include these words in description: "description", "desc", "details"
3. Name = just the activity (1-4 words)
4. Description = schedule/frequency/details (can be empty)

INTENTS: CREATE_HABIT, SHOW_HABITS, UPDATE_HABIT, DELETE_HABIT, DELETE_ALL, SELECT_HABIT, LOG_COMPLETION, CHECK_STREAK, HELP, GREETING, UNKNOWN

EXAMPLES:

"name cricket description har sunday"
-> {"intent": "CREATE_HABIT", "parameters": {"name": "Cricket", "description": "Har sunday"}, "confidence": 0.9}

"cricket"
-> {"intent": "CREATE_HABIT", "parameters": {"name": "Cricket", "description": ""}, "confidence": 0.8}

"show habits" -> {"intent": "SHOW_HABITS", "parameters": {}, "confidence": 0.95}
"delete cricket" -> {"intent": "DELETE_HABIT", "parameters": {"habit_name": "Cricket"}, "confidence": 0.9}
"delete all" -> {"intent": "DELETE_ALL", "parameters": {}, "confidence": 0.9}
"update cricket description evening practice" -> {"intent": "UPDATE_HABIT", "parameters": {"habit_name": "Cricket", "new_name": "", "new_description": "Evening practice"}, "confidence": 0.9}
"i completed yoga today" -> {"intent": "LOG_COMPLETION", "parameters": {"habit_name": "Yoga"}, "confidence": 0.9}
"what's my streak" -> {"intent": "CHECK_STREAK", "parameters": {}, "confidence": 0.95}
"hello" -> {"intent": "GREETING", "parameters": {}, "confidence": 0.95}

RESPOND WITH JSON ONLY:
{"intent": "...", "parameters": {...}, "confidence": 0.0-1.0}`

// Classifier delegates intent detection to a language model and normalizes
// the extracted parameters. It never surfaces failures: any transport error,
// malformed reply, or low-confidence result yields nil, and the caller falls
// through to the deterministic parser.
type Classifier struct {
	client  genai.ClientInterface
	timeout time.Duration
}

// NewClassifier creates a classifier backed by the given GenAI client.
func NewClassifier(client genai.ClientInterface) *Classifier {
	return &Classifier{client: client, timeout: DefaultClassifyTimeout}
}

// SetTimeout overrides the per-call deadline for the language model.
func (c *Classifier) SetTimeout(d time.Duration) {
	c.timeout = d
}

// classifierReply mirrors the JSON shape the model is instructed to produce.
// Parameters are decoded loosely so a model that emits a non-string value
// does not sink the whole reply.
type classifierReply struct {
	Intent     string                 `json:"intent"`
	Parameters map[string]interface{} `json:"parameters"`
	Confidence float64                `json:"confidence"`
}

// Classify sends the message to the language model and returns the detected
// intent, or nil when the model call failed, the reply was unusable, or the
// confidence was at or below MinClassifierConfidence.
func (c *Classifier) Classify(ctx context.Context, message string) *models.Intent {
	if c.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.GeneratePromptWithContext(ctx, classifierSystemPrompt, message)
	if err != nil {
		slog.Debug("Classifier.Classify: model call failed, deferring to parser", "error", err)
		return nil
	}

	var reply classifierReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		slog.Debug("Classifier.Classify: unparseable model reply, deferring to parser", "error", err)
		return nil
	}

	intentType := models.IntentType(reply.Intent)
	if !models.IsValidIntentType(intentType) {
		slog.Debug("Classifier.Classify: unknown intent label, deferring to parser", "intent", reply.Intent)
		return nil
	}
	if reply.Confidence <= MinClassifierConfidence {
		slog.Debug("Classifier.Classify: low confidence, deferring to parser", "confidence", reply.Confidence)
		return nil
	}

	result := &models.Intent{
		Type:       intentType,
		Parameters: normalizeParameters(reply.Parameters),
		Confidence: reply.Confidence,
	}
	slog.Debug("Classifier.Classify: classified message", "intent", result.Type, "confidence", result.Confidence)
	return result
}

// normalizeParameters coerces parameter values to strings and runs the same
// stop-word cleaning as the deterministic parser, so downstream code sees
// consistent output regardless of which path produced the intent. habit_name
// is passed through untouched: it must match existing data, not be rewritten.
func normalizeParameters(raw map[string]interface{}) map[string]string {
	params := make(map[string]string, len(raw))
	for key, value := range raw {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case models.ParamName, models.ParamNewName:
			params[key] = CleanName(s)
		case models.ParamDescription, models.ParamNewDescription:
			params[key] = CleanDescription(s)
		default:
			params[key] = s
		}
	}
	return params
}

// extractJSON pulls a single JSON object out of a model reply that may be
// wrapped in markdown code fences or surrounded by prose.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	text = strings.TrimSpace(text)

	// Trim any prose around the outermost braces.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}
