// Package intent provides the deterministic keyword parser.
package intent

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/BTreeMap/HabitChat/internal/models"
)

// Confidence constants per rule tier. These are not continuous scores; they
// exist so the orchestrator can compare the parser's output against the
// classifier's confidence.
const (
	// HighConfidence is assigned to unambiguous keyword matches (greeting,
	// help, show, delete-all, streak).
	HighConfidence = 0.9
	// ModerateConfidence is assigned to rules that also extract parameters
	// (create, update, delete, select, completion).
	ModerateConfidence = 0.7
)

var (
	greetingWords   = []string{"hello", "hi", "hey", "salam", "assalam", "aoa"}
	helpWords       = []string{"help", "madad"}
	helpPhrases     = []string{"kya kar", "kia kar"}
	deleteAllMarks  = []string{"delete all", "remove all", "clear all", "delete everything", "remove everything", "sab delete", "all delete", "sari delete", "saari delete"}
	deleteWords     = []string{"delete", "remove", "hata", "hatao"}
	showWords       = []string{"show", "list", "dikha", "dikhao", "batao", "habits"}
	updateWords     = []string{"update", "edit", "change", "badal", "badlo"}
	streakWords     = []string{"streak", "streaks"}
	completionWords = []string{"completed", "complete", "done", "finished", "log", "logged"}
	selectWords     = []string{"select", "check", "choose", "chuno"}
	createWords     = []string{"create", "add", "banana", "banao", "make", "new", "name"}
)

var descMarkerRe = regexp.MustCompile(`\b(?:description|desc)\b`)
var newNameRe = regexp.MustCompile(`new\s+name\s+(\w+)`)

// Parse is the guaranteed fallback: a total function that classifies a
// message by keyword rules without any external call. First matching rule
// wins. Any non-trivial leftover text is treated as an implicit create so
// the engine always has something actionable to say.
func Parse(message string, habits []models.Habit) models.Intent {
	msg := strings.ToLower(strings.TrimSpace(message))

	switch {
	case hasAnyWord(msg, greetingWords):
		return models.Intent{Type: models.IntentGreeting, Parameters: map[string]string{}, Confidence: HighConfidence}

	case hasAnyWord(msg, helpWords) || hasAnyPhrase(msg, helpPhrases):
		return models.Intent{Type: models.IntentHelp, Parameters: map[string]string{}, Confidence: HighConfidence}

	case hasAnyPhrase(msg, deleteAllMarks):
		return models.Intent{Type: models.IntentDeleteAll, Parameters: map[string]string{}, Confidence: HighConfidence}

	case hasAnyWord(msg, deleteWords):
		return models.Intent{
			Type:       models.IntentDeleteHabit,
			Parameters: map[string]string{models.ParamHabitName: findTarget(message, msg, habits, deleteWords)},
			Confidence: ModerateConfidence,
		}

	case hasAnyWord(msg, showWords):
		return models.Intent{Type: models.IntentShowHabits, Parameters: map[string]string{}, Confidence: HighConfidence}

	case hasAnyWord(msg, updateWords):
		return parseUpdate(message, habits)

	case hasAnyWord(msg, streakWords):
		return models.Intent{Type: models.IntentCheckStreak, Parameters: map[string]string{}, Confidence: HighConfidence}

	case hasAnyWord(msg, completionWords):
		return models.Intent{
			Type:       models.IntentLogCompletion,
			Parameters: map[string]string{models.ParamHabitName: findTarget(message, msg, habits, completionWords)},
			Confidence: ModerateConfidence,
		}

	case hasAnyWord(msg, selectWords):
		return models.Intent{
			Type:       models.IntentSelectHabit,
			Parameters: map[string]string{models.ParamHabitName: findTarget(message, msg, habits, selectWords)},
			Confidence: ModerateConfidence,
		}

	case hasAnyWord(msg, createWords):
		return parseCreate(message)

	case len(msg) > 2:
		// Bare activity names like "cricket" are an implicit create.
		return parseCreate(message)
	}

	return models.Intent{Type: models.IntentUnknown, Parameters: map[string]string{}, Confidence: 0.0}
}

// parseCreate extracts a clean habit name and optional description.
func parseCreate(message string) models.Intent {
	msg := strings.ToLower(message)
	var name, description string

	switch {
	case descMarkerRe.MatchString(msg):
		// "name X description Y" - the marker splits name from description.
		parts := descMarkerRe.Split(msg, 2)
		name = CleanName(parts[0])
		description = CleanDescription(parts[1])

	case strings.Contains(msg, ","):
		// "gym, monday wednesday friday" - comma separates name from schedule.
		parts := strings.SplitN(msg, ",", 2)
		name = CleanName(parts[0])
		description = CleanDescription(parts[1])

	default:
		name = CleanName(msg)
	}

	return models.Intent{
		Type: models.IntentCreateHabit,
		Parameters: map[string]string{
			models.ParamName:        name,
			models.ParamDescription: description,
		},
		Confidence: ModerateConfidence,
	}
}

// parseUpdate locates the habit named in the message and splits the remainder
// into a name update vs. a description update.
func parseUpdate(message string, habits []models.Habit) models.Intent {
	msg := strings.ToLower(message)
	habitName := FindHabitInMessage(message, habits)

	var newName, newDescription string
	if descMarkerRe.MatchString(msg) {
		parts := descMarkerRe.Split(msg, 2)
		newDescription = CleanDescription(stripWords(parts[1], updateStopWords))
	} else {
		remainder := msg
		if habitName != "" {
			remainder = strings.ReplaceAll(remainder, strings.ToLower(habitName), "")
		}
		newDescription = CleanDescription(stripWords(remainder, updateStopWords))
	}

	if strings.Contains(msg, "name") && strings.Contains(msg, "new") {
		if m := newNameRe.FindStringSubmatch(msg); m != nil {
			newName = CleanName(m[1])
			if newName != "" {
				// The captured word is the rename target, not a description.
				newDescription = ""
			}
		}
	}

	return models.Intent{
		Type: models.IntentUpdateHabit,
		Parameters: map[string]string{
			models.ParamHabitName:      habitName,
			models.ParamNewName:        newName,
			models.ParamNewDescription: newDescription,
		},
		Confidence: ModerateConfidence,
	}
}

// findTarget extracts the habit a command refers to: a stored name mentioned
// verbatim wins, otherwise the command words are stripped and the remainder
// is resolved fuzzily.
func findTarget(message, msg string, habits []models.Habit, commandWords []string) string {
	if name := FindHabitInMessage(message, habits); name != "" {
		return name
	}
	drop := make(map[string]bool, len(commandWords))
	for _, w := range commandWords {
		drop[w] = true
	}
	if h := Resolve(habits, stripWords(msg, drop)); h != nil {
		return h.Name
	}
	return ""
}

// hasAnyWord reports whether any of the given keywords appears as a whole
// token in the message. Token matching keeps short keywords like "hi" from
// firing inside unrelated words.
func hasAnyWord(msg string, words []string) bool {
	tokens := strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

// hasAnyPhrase reports whether any of the given multi-word phrases appears in
// the message.
func hasAnyPhrase(msg string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
