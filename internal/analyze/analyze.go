// Package analyze derives lightweight context signals from a single
// inbound message plus recent history. Pure functions, no external calls.
package analyze

import (
	"strings"
	"time"

	"autoreply/internal/contacts"
	"autoreply/internal/history"
)

// Response styles
const (
	StyleDirect   = "Direct"
	StyleFriendly = "Friendly"
)

// Sentiment labels
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// followUpWindow bounds how old the last exchange may be for a message to
// count as a follow-up
const followUpWindow = 24 * time.Hour

var urgentKeywords = []string{
	"urgent", "asap", "emergency", "immediately", "right away", "critical",
}

var interrogatives = []string{
	"who", "what", "when", "where", "why", "how",
	"is", "are", "can", "could", "would", "should", "do", "does", "did",
}

var meetingKeywords = []string{
	"meeting", "schedule", "calendar", "appointment", "call", "zoom",
	"meet", "available", "availability",
}

var workKeywords = []string{
	"project", "deadline", "report", "client", "work", "office", "task",
	"presentation", "budget",
}

var positiveWords = []string{
	"thanks", "thank", "great", "awesome", "love", "excellent", "good",
	"amazing", "happy", "perfect", "wonderful",
}

var negativeWords = []string{
	"bad", "terrible", "hate", "awful", "angry", "problem", "issue",
	"wrong", "sad", "disappointed", "annoyed",
}

// Signals are the derived flags consumed by the prompt builder and dispatcher
type Signals struct {
	IsUrgent         bool   `json:"is_urgent"`
	IsFollowUp       bool   `json:"is_follow_up"`
	HasQuestion      bool   `json:"has_question"`
	IsMeetingRelated bool   `json:"is_meeting_related"`
	IsWorkRelated    bool   `json:"is_work_related"`
	Sentiment        string `json:"sentiment"`
	ResponseStyle    string `json:"response_style"`
}

// Analyze computes context signals for one inbound message. The response
// style starts from the contact's preferred style, is overridden to
// Friendly on positive sentiment, and to Direct on urgency; urgency is
// applied last and wins.
func Analyze(content string, profile contacts.Profile, recent []history.Entry) Signals {
	lower := strings.ToLower(content)

	s := Signals{
		IsUrgent:         containsAny(lower, urgentKeywords),
		IsFollowUp:       isFollowUp(recent),
		HasQuestion:      hasQuestion(lower),
		IsMeetingRelated: containsAny(lower, meetingKeywords),
		IsWorkRelated:    containsAny(lower, workKeywords),
		Sentiment:        sentiment(lower),
	}

	s.ResponseStyle = profile.PreferredStyle
	if s.Sentiment == SentimentPositive {
		s.ResponseStyle = StyleFriendly
	}
	if s.IsUrgent {
		s.ResponseStyle = StyleDirect
	}
	return s
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isFollowUp(recent []history.Entry) bool {
	if len(recent) == 0 {
		return false
	}
	last := recent[len(recent)-1]
	return time.Since(last.Timestamp) < followUpWindow
}

func hasQuestion(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	first := strings.ToLower(firstWord(lower))
	for _, w := range interrogatives {
		if first == w {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func sentiment(lower string) string {
	positive := countMatches(lower, positiveWords)
	negative := countMatches(lower, negativeWords)
	switch {
	case positive > negative:
		return SentimentPositive
	case negative > positive:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func countMatches(lower string, words []string) int {
	count := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			count++
		}
	}
	return count
}
