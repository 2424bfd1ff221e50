package model

import (
	"testing"
)

func TestBoardKeyRoundTrip(t *testing.T) {
	cases := []LeaderboardID{
		GlobalBoard("arena"),
		WindowBoard("arena", WindowDaily, "2024-01-15"),
		WindowBoard("arena", WindowWeekly, "2024-W03"),
		WindowBoard("arena", WindowMonthly, "2024-01"),
		FriendsBoard("arena", "p42"),
	}
	for _, id := range cases {
		key := id.Key()
		parsed, err := ParseBoardKey(key)
		if err != nil {
			t.Fatalf("parsing %q: %v", key, err)
		}
		if parsed != id {
			t.Errorf("round trip mismatch for %q: got %+v, want %+v", key, parsed, id)
		}
	}
}

func TestBoardKeyShapes(t *testing.T) {
	if got := GlobalBoard("arena").Key(); got != "arena:global" {
		t.Errorf("global key: got %q", got)
	}
	if got := WindowBoard("arena", WindowDaily, "2024-01-15").Key(); got != "arena:window:daily:2024-01-15" {
		t.Errorf("window key: got %q", got)
	}
	if got := FriendsBoard("arena", "p42").Key(); got != "arena:friends:p42" {
		t.Errorf("friends key: got %q", got)
	}
}

func TestParseBoardKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{
		"",
		"arena",
		"arena:unknown",
		"arena:window",
		"arena:window:hourly:2024-01-15",
		"arena:friends",
	} {
		if _, err := ParseBoardKey(key); err == nil {
			t.Errorf("expected error for %q", key)
		}
	}
}

func TestValidKeyPart(t *testing.T) {
	valid := []string{"arena", "p42", "daily-arena", "a_b.c"}
	for _, s := range valid {
		if !ValidKeyPart(s) {
			t.Errorf("expected %q to be a valid key part", s)
		}
	}
	invalid := []string{"", "a:b", ":", "arena:global"}
	for _, s := range invalid {
		if ValidKeyPart(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestWindowKindValid(t *testing.T) {
	for _, kind := range []WindowKind{WindowDaily, WindowWeekly, WindowMonthly} {
		if !kind.Valid() {
			t.Errorf("expected %q to be valid", kind)
		}
	}
	if WindowKind("hourly").Valid() {
		t.Error("expected hourly to be invalid")
	}
}
