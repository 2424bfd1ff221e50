// Package model contains domain types passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// PlayerID identifies a player. Profile data (username, avatar) lives
// outside the engine and is resolved through the directory.
type PlayerID string

// WindowKind enumerates the supported time-window granularities.
type WindowKind string

const (
	WindowDaily   WindowKind = "daily"
	WindowWeekly  WindowKind = "weekly"
	WindowMonthly WindowKind = "monthly"
)

// Valid reports whether k is a known window kind.
func (k WindowKind) Valid() bool {
	switch k {
	case WindowDaily, WindowWeekly, WindowMonthly:
		return true
	}
	return false
}

// ScopeKind discriminates leaderboard scopes.
type ScopeKind string

const (
	ScopeGlobal     ScopeKind = "global"
	ScopeFriends    ScopeKind = "friends"
	ScopeTimeWindow ScopeKind = "window"
)

// LeaderboardID identifies one ranking instance: a base name plus a scope.
// Time-windowed boards carry the window kind and a canonical period key,
// friends boards carry the owning player.
type LeaderboardID struct {
	BaseName  string     `json:"base_name"`
	Scope     ScopeKind  `json:"scope"`
	Window    WindowKind `json:"window,omitempty"`
	PeriodKey string     `json:"period_key,omitempty"`
	Owner     PlayerID   `json:"owner,omitempty"`
}

// GlobalBoard returns the global board id for a base name.
func GlobalBoard(base string) LeaderboardID {
	return LeaderboardID{BaseName: base, Scope: ScopeGlobal}
}

// FriendsBoard returns the friends board id owned by a player.
func FriendsBoard(base string, owner PlayerID) LeaderboardID {
	return LeaderboardID{BaseName: base, Scope: ScopeFriends, Owner: owner}
}

// WindowBoard returns the time-windowed board id for a period key.
func WindowBoard(base string, kind WindowKind, periodKey string) LeaderboardID {
	return LeaderboardID{BaseName: base, Scope: ScopeTimeWindow, Window: kind, PeriodKey: periodKey}
}

// ValidKeyPart reports whether s may appear inside a board key. The key
// codec joins its parts with ':', so names carrying one cannot round-trip
// through Key/ParseBoardKey and must be rejected at the ingest edge.
func ValidKeyPart(s string) bool {
	return s != "" && !strings.Contains(s, ":")
}

// Key returns the canonical string form used as map/registry key and as the
// board identifier on the wire, e.g. "arena:global",
// "arena:window:daily:2024-01-15", "arena:friends:p42".
func (id LeaderboardID) Key() string {
	switch id.Scope {
	case ScopeTimeWindow:
		return fmt.Sprintf("%s:window:%s:%s", id.BaseName, id.Window, id.PeriodKey)
	case ScopeFriends:
		return fmt.Sprintf("%s:friends:%s", id.BaseName, id.Owner)
	default:
		return id.BaseName + ":global"
	}
}

// ParseBoardKey parses the canonical form produced by Key.
func ParseBoardKey(s string) (LeaderboardID, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || parts[0] == "" {
		return LeaderboardID{}, fmt.Errorf("malformed board key %q", s)
	}
	switch parts[1] {
	case "global":
		if len(parts) != 2 {
			return LeaderboardID{}, fmt.Errorf("malformed board key %q", s)
		}
		return GlobalBoard(parts[0]), nil
	case "friends":
		if len(parts) != 3 || parts[2] == "" {
			return LeaderboardID{}, fmt.Errorf("malformed board key %q", s)
		}
		return FriendsBoard(parts[0], PlayerID(parts[2])), nil
	case "window":
		if len(parts) != 4 || !WindowKind(parts[2]).Valid() || parts[3] == "" {
			return LeaderboardID{}, fmt.Errorf("malformed board key %q", s)
		}
		return WindowBoard(parts[0], WindowKind(parts[2]), parts[3]), nil
	}
	return LeaderboardID{}, fmt.Errorf("malformed board key %q", s)
}

// ScoreEntry is a single submission event. Immutable once appended to the
// score log; the engine only needs PlayerID and Score for ranking.
type ScoreEntry struct {
	PlayerID    PlayerID          `json:"player_id"`
	Board       string            `json:"board"`
	Score       int64             `json:"score"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Submission is the input to the submission pipeline. BaseName selects the
// leaderboard family; FriendGroups optionally fans the score out to the
// friends boards owned by those players.
type Submission struct {
	PlayerID     PlayerID
	BaseName     string
	Score        int64
	SubmittedAt  time.Time
	Metadata     map[string]string
	FriendGroups []PlayerID
}

// RankChange is the outcome of one board commit.
type RankChange struct {
	Changed bool  `json:"changed"`
	OldRank int   `json:"old_rank"` // 0 when the player was absent
	NewRank int   `json:"new_rank"`
	Score   int64 `json:"score"`
}

// BoardChange pairs a fan-out target with its commit outcome. Err is set when
// that target failed to commit; other targets are unaffected.
type BoardChange struct {
	Board  LeaderboardID `json:"board"`
	Change RankChange    `json:"change"`
	Err    error         `json:"-"`
}

// AntiCheatFlag marks an admitted-but-suspicious submission.
type AntiCheatFlag struct {
	Suspicious bool   `json:"suspicious"`
	Reason     string `json:"reason,omitempty"`
}

// SubmissionResult reports the end-to-end outcome of one submission.
type SubmissionResult struct {
	Accepted bool          `json:"accepted"`
	Boards   []BoardChange `json:"boards"`
	Flag     AntiCheatFlag `json:"flag"`
}

// RankChangeEvent is emitted after a commit that moved a player's rank.
type RankChangeEvent struct {
	ID       string        `json:"id"`
	Board    LeaderboardID `json:"board"`
	BoardKey string        `json:"board_key"`
	PlayerID PlayerID      `json:"player_id"`
	OldRank  int           `json:"old_rank"`
	NewRank  int           `json:"new_rank"`
	Score    int64         `json:"score"`
	At       time.Time     `json:"at"`
}

// ProfileView is the directory's projection of a player.
type ProfileView struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
