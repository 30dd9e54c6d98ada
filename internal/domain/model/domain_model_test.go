//go:build !integration

package model

import (
	"encoding/json"
	"strings"
	"testing"
)

const welcome = "Hi there! welcome"

func TestNewCareerSession(t *testing.T) {
	s := NewCareerSession("abc", "be helpful")

	if s.ID != "abc" {
		t.Errorf("expected id abc, got %s", s.ID)
	}
	if s.State != StateAskUserInfo {
		t.Errorf("expected ask_user_info, got %s", s.State)
	}
	if len(s.Messages) != 1 || s.Messages[0].Role != RoleSystem || s.Messages[0].Content != "be helpful" {
		t.Fatalf("unexpected seed messages: %+v", s.Messages)
	}
	if s.Messages[0].ID == "" || s.Messages[0].Timestamp.IsZero() {
		t.Error("message id and timestamp must be set")
	}
	if s.Profile != (Profile{}) {
		t.Errorf("profile should be empty, got %+v", s.Profile)
	}
}

func TestVisibleMessages(t *testing.T) {
	s := NewCareerSession("abc", "system")
	s.AddMessage(RoleAssistant, welcome, 0)
	s.AddMessage(RoleUser, "Alex", 1)
	s.AddMessage(RoleAssistant, "Nice to meet you", 4)
	s.AddMessage(RoleUser, "again?", 2)
	// a later model reply that happens to equal the greeting is hidden too
	s.AddMessage(RoleAssistant, welcome, 0)

	got := s.VisibleMessages(welcome)
	want := []string{"Alex", "Nice to meet you", "again?"}
	if len(got) != len(want) {
		t.Fatalf("expected %d visible messages, got %d: %+v", len(want), len(got), got)
	}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("message %d: want %q, got %q", i, want[i], m.Content)
		}
		if m.Role == RoleSystem {
			t.Error("system message leaked")
		}
	}
}

func TestConversation(t *testing.T) {
	s := NewCareerSession("abc", "system")
	if len(s.Conversation()) != 0 {
		t.Fatal("fresh session has no conversation")
	}
	s.AddMessage(RoleUser, "hi", 1)
	conv := s.Conversation()
	if len(conv) != 1 || conv[0].Role != RoleUser {
		t.Fatalf("unexpected conversation %+v", conv)
	}
}

func TestClone(t *testing.T) {
	s := NewCareerSession("abc", "system")
	cp := s.Clone()
	cp.AddMessage(RoleUser, "hi", 1)
	cp.Profile.Name = "Zed"

	if len(s.Messages) != 1 {
		t.Errorf("clone shares message slice with original")
	}
	if s.Profile.Name != "" {
		t.Errorf("clone shares profile with original")
	}
}

func TestStateOrder(t *testing.T) {
	order := []State{StateInitial, StateAskUserInfo, StateAskStream, StateShowCategories, StateRoleSelected, StateInSimulation}
	for i := 1; i < len(order); i++ {
		if !order[i-1].Before(order[i]) {
			t.Errorf("%s should precede %s", order[i-1], order[i])
		}
	}
	if State("bogus").Valid() {
		t.Error("unknown state reported valid")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("assistant"); err != nil || r != RoleAssistant {
		t.Fatalf("ParseRole(assistant) = %v, %v", r, err)
	}
	if _, err := ParseRole("tool"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestSessionJSONShape(t *testing.T) {
	s := NewCareerSession("abc", "system")
	s.Profile = Profile{Name: "Alex"}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"sessionId":"abc"`, `"userInfo":{"name":"Alex"}`, `"state":"ask_user_info"`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("json missing %s: %s", key, b)
		}
	}
}
