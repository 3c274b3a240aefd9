package chat

import (
	"time"

	"github.com/BTreeMap/HabitChat/internal/models"
)

// timeNow is the engine's time source, swapped out in tests.
var timeNow = time.Now

const helpText = "Here's what I can do:\n" +
	"- Create a habit: 'create habit cricket description every sunday'\n" +
	"- See your habits: 'show my habits'\n" +
	"- Log a completion: 'i did yoga today'\n" +
	"- Check streaks: 'what's my streak'\n" +
	"- Rename or edit: 'update cricket description evening practice'\n" +
	"- Delete: 'delete cricket' or 'delete all habits'"

const unknownText = "I didn't quite get that. Try 'show my habits', 'create habit ...', or say 'help' to see everything I can do."

// intentSuggestions maps each intent to the follow-up chips shown with the
// reply. Keyed by the intent of the reply, not of the incoming message.
var intentSuggestions = map[models.IntentType][]string{
	models.IntentGreeting:      {"show my habits", "create a habit", "what's my streak"},
	models.IntentHelp:          {"show my habits", "create a habit"},
	models.IntentCreateHabit:   {"create a habit", "show my habits"},
	models.IntentShowHabits:    {"create a habit", "log a completion", "what's my streak"},
	models.IntentUpdateHabit:   {"show my habits", "what's my streak"},
	models.IntentDeleteHabit:   {"show my habits", "create a habit"},
	models.IntentSelectHabit:   {"log a completion", "what's my streak"},
	models.IntentLogCompletion: {"what's my streak", "show my habits"},
	models.IntentCheckStreak:   {"log a completion", "show my habits"},
	models.IntentUnknown:       {"help", "show my habits"},
}

// suggestionsFor returns the follow-up suggestions for a reply intent.
func suggestionsFor(it models.IntentType) []string {
	if s, exists := intentSuggestions[it]; exists {
		return s
	}
	return intentSuggestions[models.IntentUnknown]
}

// replyFor pairs reply content with the intent's standard suggestions.
func replyFor(it models.IntentType, content string) models.ChatReply {
	return models.ChatReply{
		Content:     content,
		Suggestions: suggestionsFor(it),
	}
}
