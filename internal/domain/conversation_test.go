package domain

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"user", RoleUser, true},
		{" Human ", RoleUser, true},
		{"assistant", RoleAssistant, true},
		{"model", RoleAssistant, true},
		{"SYSTEM", RoleSystem, true},
		{"tool", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRole(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConversation_LastAndNormalize(t *testing.T) {
	var empty Conversation
	if _, ok := empty.Last(); ok {
		t.Error("expected no last message in empty conversation")
	}

	conv := Conversation{
		{Role: "human", Content: "hi"},
		{Role: "ai", Content: "hello"},
		{Role: "user", Content: "what is an ETF?"},
	}
	norm, ok := conv.Normalize()
	if !ok {
		t.Fatal("expected conversation to normalize")
	}
	if norm[1].Role != RoleAssistant {
		t.Errorf("role = %q, want assistant", norm[1].Role)
	}
	last, _ := norm.Last()
	if last.Content != "what is an ETF?" {
		t.Errorf("last = %q", last.Content)
	}

	if _, ok := (Conversation{{Role: "tool", Content: "x"}}).Normalize(); ok {
		t.Error("expected unknown role to fail normalization")
	}
}
