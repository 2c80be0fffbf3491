// Package leaderboard manages rooms where members compare their lung health
// scores over time.
package leaderboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/lungbuddy/lungbuddy/internal/risk"
)

// Repository errors.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrCodeTaken      = errors.New("room code already in use")
)

// Service errors.
var (
	ErrNotMember           = errors.New("not a member of this room")
	ErrCooldownActive      = errors.New("submission cooldown active")
	ErrSubmissionsDisabled = errors.New("score submissions are disabled")
)

// Room is a group of members competing on score improvement.
type Room struct {
	ID          string
	Name        string
	Code        string
	CreatedBy   string
	MemberCount int
	CreatedAt   time.Time
}

// Member is a user's membership in a room along with their progress.
type Member struct {
	RoomID           string
	UserID           string
	DisplayName      string
	FirstScore       *int
	LatestScore      *int
	ImprovementPct   *float64
	TotalSubmissions int
	LastSubmittedAt  *time.Time
	JoinedAt         time.Time
}

// Submission is a single score posted to a room.
type Submission struct {
	ID          string
	RoomID      string
	UserID      string
	DisplayName string
	Score       int
	Label       risk.Label
	Breakdown   risk.Breakdown
	SubmittedAt time.Time
}

// Standing is a member's position on the room leaderboard.
type Standing struct {
	Rank   int
	Member *Member
	Streak int
}

// CooldownError is returned when a member submits again too soon.
type CooldownError struct {
	NextAllowedAt time.Time
	Remaining     time.Duration
}

func (e *CooldownError) Error() string {
	hours := int(e.Remaining / time.Hour)
	mins := int((e.Remaining % time.Hour) / time.Minute)
	return fmt.Sprintf("submission cooldown active, try again in %dh %dm", hours, mins)
}

// Is allows errors.Is(err, ErrCooldownActive).
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}
