package core

import "strings"

// Condition decides when a run's conversation has reached a natural end. It
// is evaluated once per completed turn against the tail of the conversation
// only, keeping evaluation O(1) amortized. Conditions must be pure; they are
// never a place to drive side effects.
type Condition func(conv Conversation) bool

// DefaultExitPhrases are the phrases the default condition stops on.
var DefaultExitPhrases = []string{"bye", "exit", "thanks"}

// ExitPhrases returns a Condition that stops when the most recent message is
// user-authored and its lowercased text contains any of the given phrases.
// With no phrases it falls back to DefaultExitPhrases.
func ExitPhrases(phrases ...string) Condition {
	if len(phrases) == 0 {
		phrases = DefaultExitPhrases
	}
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return func(conv Conversation) bool {
		tail, ok := conv.Tail()
		if !ok || tail.Role != RoleUser {
			return false
		}
		text := strings.ToLower(tail.Text)
		for _, p := range lowered {
			if strings.Contains(text, p) {
				return true
			}
		}
		return false
	}
}
