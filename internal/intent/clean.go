// Package intent turns raw chat messages into typed intents with extracted
// parameters.
//
// It provides the deterministic keyword parser (the guaranteed fallback), the
// GenAI-backed classifier, and the fuzzy entity resolver used to match spoken
// habit names against stored records.
package intent

import "strings"

// Administrative and filler words stripped from extracted habit names.
// Includes a small bilingual (English/Roman Urdu) set so mixed-language
// messages produce clean names.
var nameStopWords = map[string]bool{
	"name": true, "habit": true, "create": true, "add": true,
	"banana": true, "banao": true, "make": true, "new": true,
	"meri": true, "mera": true, "ki": true, "ka": true, "ko": true,
	"hai": true, "ha": true, "karo": true, "kro": true, "kar": true,
	"the": true, "a": true, "an": true, "is": true, "and": true, "or": true,
}

// Words stripped from extracted habit descriptions.
var descStopWords = map[string]bool{
	"description": true, "desc": true, "details": true,
	"uski": true, "iski": true, "ki": true, "to": true, "do": true,
	"kro": true, "karo": true, "change": true, "badal": true, "badlo": true,
}

// Update/edit trigger words removed before description extraction.
var updateStopWords = map[string]bool{
	"update": true, "edit": true, "change": true,
	"badal": true, "badlo": true, "kro": true, "karo": true, "do": true,
}

// CleanName strips administrative stop-words from text and title-cases the
// remainder. Returns "" when nothing survives stripping; the caller is
// expected to re-prompt in that case.
func CleanName(text string) string {
	var kept []string
	for _, word := range strings.Fields(text) {
		if !nameStopWords[strings.ToLower(word)] {
			kept = append(kept, word)
		}
	}
	return titleCase(strings.Join(kept, " "))
}

// CleanDescription strips description stop-words from text. Unlike names,
// descriptions keep their original casing apart from leading capitalization.
func CleanDescription(text string) string {
	var kept []string
	for _, word := range strings.Fields(text) {
		if !descStopWords[strings.ToLower(word)] {
			kept = append(kept, word)
		}
	}
	return sentenceCase(strings.Join(kept, " "))
}

// titleCase upper-cases the first letter of each word and lower-cases the rest.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

// sentenceCase capitalizes only the first word, lower-casing everything else.
func sentenceCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return capitalize(s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// stripWords removes every word in the given set from text, preserving the
// order of the remaining words.
func stripWords(text string, words map[string]bool) string {
	var kept []string
	for _, word := range strings.Fields(text) {
		if !words[strings.ToLower(word)] {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}
