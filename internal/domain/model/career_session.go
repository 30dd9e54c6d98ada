package model

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role is the closed set of message authors.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ParseRole maps a wire value onto a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown message role %q", s)
	}
	return r, nil
}

// State is a phase of the intake pipeline.
type State string

const (
	StateInitial        State = "initial"
	StateAskUserInfo    State = "ask_user_info"
	StateAskStream      State = "ask_stream"
	StateShowCategories State = "show_categories"
	StateRoleSelected   State = "role_selected"
	StateInSimulation   State = "in_simulation"
)

var stateRank = map[State]int{
	StateInitial:        0,
	StateAskUserInfo:    1,
	StateAskStream:      2,
	StateShowCategories: 3,
	StateRoleSelected:   4,
	StateInSimulation:   5,
}

func (s State) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Before reports whether s precedes o in the intake order.
func (s State) Before(o State) bool { return stateRank[s] < stateRank[o] }

// Message is one entry of a session log.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Tokens    int       `json:"tokens,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile holds the signals captured during intake. Fields are set once.
type Profile struct {
	Name         string `json:"name,omitempty"`
	Stream       string `json:"stream,omitempty"`
	SelectedRole string `json:"selectedRole,omitempty"`
}

// CareerSession is the aggregate root for one user's conversation.
type CareerSession struct {
	ID         string    `json:"sessionId"`
	Messages   []Message `json:"messages"`
	State      State     `json:"state"`
	Profile    Profile   `json:"userInfo"`
	Version    int64     `json:"version"`
	LastActive time.Time `json:"lastActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewCareerSession creates a session whose log starts with the given system
// instruction. Fresh sessions wait for the user's name.
func NewCareerSession(id, systemPrompt string) *CareerSession {
	now := time.Now().UTC()
	s := &CareerSession{
		ID:         id,
		Messages:   make([]Message, 0, 8),
		State:      StateAskUserInfo,
		LastActive: now,
		CreatedAt:  now,
	}
	s.AddMessage(RoleSystem, systemPrompt, 0)
	return s
}

func (s *CareerSession) AddMessage(role Role, content string, tokens int) Message {
	now := time.Now().UTC()
	m := Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Tokens:    tokens,
		Timestamp: now,
	}
	s.Messages = append(s.Messages, m)
	s.LastActive = now
	return m
}

func (s *CareerSession) Touch() { s.LastActive = time.Now().UTC() }

// Conversation returns the log without the leading system instruction.
func (s *CareerSession) Conversation() []Message {
	if len(s.Messages) > 0 && s.Messages[0].Role == RoleSystem {
		return s.Messages[1:]
	}
	return s.Messages
}

// VisibleMessages drops system entries and any assistant message whose
// content equals welcome. The filter is by content, so a later verbatim
// welcome from the model is dropped too.
func (s *CareerSession) VisibleMessages(welcome string) []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			if m.Content == welcome {
				continue
			}
		case RoleUser:
		default:
			continue
		}
		out = append(out, m)
	}
	return out
}

// Clone returns a deep copy, so stores never share slices with callers.
func (s *CareerSession) Clone() *CareerSession {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	return &cp
}

// NewMessageID returns a lexically sortable message id.
func NewMessageID() string { return ulid.Make().String() }
