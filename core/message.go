package core

import "time"

// Role identifies the speaker category of a message.
type Role string

const (
	// RoleUser marks messages supplied by the human driving the run.
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by participants.
	RoleAssistant Role = "assistant"
)

// UserAuthor is the author recorded on human-supplied messages.
const UserAuthor = "user"

// Message is a single conversation entry. Messages are immutable once
// appended; the engine only ever adds to the tail of a conversation.
//
// AnswersTo tags which participant a user response answers. It is set on
// messages appended during Resume so hosts can correlate responses when more
// than one participant requested input in the same external turn.
type Message struct {
	Role      Role      `json:"role"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	AnswersTo string    `json:"answers_to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user-authored message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Author: UserAuthor, Text: text, Timestamp: time.Now().UTC()}
}

// NewUserResponse creates a user-authored message answering a pending input
// request raised by the named participant.
func NewUserResponse(text, answersTo string) Message {
	m := NewUserMessage(text)
	m.AnswersTo = answersTo
	return m
}

// NewAssistantMessage creates a participant-authored message.
func NewAssistantMessage(author, text string) Message {
	return Message{Role: RoleAssistant, Author: author, Text: text, Timestamp: time.Now().UTC()}
}

// Conversation is the append-only, causally ordered message history of one
// run. The engine owns the slice for the duration of the run; everything
// handed to participants or emitted in events is a defensive copy.
type Conversation []Message

// Tail returns the most recent message, if any.
func (c Conversation) Tail() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// Clone returns a copy safe for independent use.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// SinceLastUser returns the participant replies that follow the most recent
// user message, in original order. Hosts use this to present intermediate
// agent chatter without replaying the whole transcript.
func (c Conversation) SinceLastUser() []Message {
	start := 0
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleUser {
			start = i + 1
			break
		}
	}
	out := make([]Message, 0, len(c)-start)
	for _, m := range c[start:] {
		if m.Text != "" {
			out = append(out, m)
		}
	}
	return out
}
