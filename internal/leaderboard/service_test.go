package leaderboard_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
	"github.com/lungbuddy/lungbuddy/internal/risk"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if eventType == leaderboard.EventScoreSubmitted {
		p.events = append(p.events, payload)
	}
	return p.err
}

type staticFlags struct {
	disabled bool
	cooldown time.Duration
}

func (f staticFlags) AreSubmissionsDisabled(context.Context) bool { return f.disabled }
func (f staticFlags) SubmissionCooldown(context.Context) time.Duration { return f.cooldown }

func newTestService(t *testing.T, flags leaderboard.FlagSource) (*leaderboard.Service, *fakeClock, *recordingPublisher) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	svc := leaderboard.NewService(leaderboard.ServiceConfig{
		Repository: leaderboard.NewInMemoryRepository(),
		Publisher:  pub,
		Flags:      flags,
		Logger:     zerolog.Nop(),
		Now:        clock.Now,
	})
	return svc, clock, pub
}

func result(score int) risk.Result {
	return risk.Result{Score: score, Label: risk.LabelFor(score)}
}

func TestService_CreateRoom(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "user1", " Ana ", "  Morning Runners ")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(room.ID, "room_"))
	assert.Equal(t, "Morning Runners", room.Name)
	assert.Len(t, room.Code, leaderboard.CodeLength)
	assert.Equal(t, 1, room.MemberCount)
	for _, r := range room.Code {
		assert.Contains(t, leaderboard.CodeAlphabet, string(r))
	}

	rooms, err := svc.ListRooms(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)
}

func TestService_CreateRoom_ValidationErrors(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		roomName    string
		displayName string
		wantField   string
	}{
		{"empty name", "   ", "Ana", "name"},
		{"name too long", strings.Repeat("a", 61), "Ana", "name"},
		{"empty display name", "Runners", "", "displayName"},
		{"display name too long", "Runners", strings.Repeat("b", 41), "displayName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRoom(ctx, "user1", tt.displayName, tt.roomName)

			var validationErr *leaderboard.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Len(t, validationErr.Errors, 1)
			assert.Equal(t, tt.wantField, validationErr.Errors[0].Field)
		})
	}
}

func TestService_JoinRoom(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "owner", "Owner", "Club")
	require.NoError(t, err)

	joined, err := svc.JoinRoom(ctx, "guest", "Guest", "  "+strings.ToLower(room.Code)+" ")
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)
	assert.Equal(t, 2, joined.MemberCount)

	again, err := svc.JoinRoom(ctx, "guest", "Guest", room.Code)
	require.NoError(t, err)
	assert.Equal(t, 2, again.MemberCount)

	_, err = svc.JoinRoom(ctx, "guest", "Guest", "ZZZZZZ")
	assert.ErrorIs(t, err, leaderboard.ErrRoomNotFound)

	_, err = svc.JoinRoom(ctx, "guest", "Guest", "ab")
	var validationErr *leaderboard.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "code", validationErr.Errors[0].Field)
}

func TestService_SubmitScore_ImprovementAndCooldown(t *testing.T) {
	svc, clock, pub := newTestService(t, staticFlags{cooldown: 24 * time.Hour})
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "user1", "Ana", "Club")
	require.NoError(t, err)

	first, err := svc.SubmitScore(ctx, "user1", room.ID, result(60))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Submission.ID, "sub_"))
	assert.Equal(t, 60, *first.Member.FirstScore)
	assert.Nil(t, first.Member.ImprovementPct)
	assert.Equal(t, 1, first.Member.TotalSubmissions)

	clock.Advance(time.Hour)
	_, err = svc.SubmitScore(ctx, "user1", room.ID, result(80))
	require.ErrorIs(t, err, leaderboard.ErrCooldownActive)

	var cooldownErr *leaderboard.CooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Equal(t, 23*time.Hour, cooldownErr.Remaining)
	assert.Contains(t, cooldownErr.Error(), "23h 0m")

	clock.Advance(23 * time.Hour)
	second, err := svc.SubmitScore(ctx, "user1", room.ID, result(80))
	require.NoError(t, err)
	assert.Equal(t, 60, *second.Member.FirstScore)
	assert.Equal(t, 80, *second.Member.LatestScore)
	require.NotNil(t, second.Member.ImprovementPct)
	assert.Equal(t, 50.0, *second.Member.ImprovementPct)
	assert.Equal(t, 2, second.Member.TotalSubmissions)

	assert.Len(t, pub.events, 2)
	event, ok := pub.events[1].(leaderboard.ScoreSubmitted)
	require.True(t, ok)
	assert.Equal(t, 80, event.Score)
	assert.Equal(t, 50.0, *event.ImprovementPct)
}

func TestService_SubmitScore_ZeroCooldown(t *testing.T) {
	svc, _, _ := newTestService(t, staticFlags{cooldown: 0})
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "user1", "Ana", "Club")
	require.NoError(t, err)

	for _, score := range []int{50, 55, 60} {
		_, err := svc.SubmitScore(ctx, "user1", room.ID, result(score))
		require.NoError(t, err)
	}
}

func TestService_SubmitScore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc, _, _ := newTestService(t, staticFlags{disabled: true})
		room, err := svc.CreateRoom(ctx, "user1", "Ana", "Club")
		require.NoError(t, err)

		_, err = svc.SubmitScore(ctx, "user1", room.ID, result(70))
		assert.ErrorIs(t, err, leaderboard.ErrSubmissionsDisabled)
	})

	t.Run("not a member", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)
		room, err := svc.CreateRoom(ctx, "user1", "Ana", "Club")
		require.NoError(t, err)

		_, err = svc.SubmitScore(ctx, "stranger", room.ID, result(70))
		assert.ErrorIs(t, err, leaderboard.ErrNotMember)
	})

	t.Run("unknown room", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)
		_, err := svc.SubmitScore(ctx, "user1", "room_missing", result(70))
		assert.ErrorIs(t, err, leaderboard.ErrRoomNotFound)
	})

	t.Run("publish failure does not fail the submission", func(t *testing.T) {
		svc, _, pub := newTestService(t, nil)
		pub.err = errors.New("broker down")
		room, err := svc.CreateRoom(ctx, "user1", "Ana", "Club")
		require.NoError(t, err)

		_, err = svc.SubmitScore(ctx, "user1", room.ID, result(70))
		assert.NoError(t, err)
	})
}

func TestService_GetRoom_Standings(t *testing.T) {
	svc, clock, _ := newTestService(t, staticFlags{cooldown: 24 * time.Hour})
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "ana", "Ana", "Club")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, "ben", "Ben", room.Code)
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, "cy", "Cy", room.Code)
	require.NoError(t, err)

	_, err = svc.SubmitScore(ctx, "ana", room.ID, result(60))
	require.NoError(t, err)
	_, err = svc.SubmitScore(ctx, "ben", room.ID, result(50))
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, err = svc.SubmitScore(ctx, "ana", room.ID, result(70))
	require.NoError(t, err)
	_, err = svc.SubmitScore(ctx, "ben", room.ID, result(75))
	require.NoError(t, err)

	view, err := svc.GetRoom(ctx, "cy", room.ID)
	require.NoError(t, err)
	require.Len(t, view.Standings, 3)

	assert.Equal(t, "ben", view.Standings[0].Member.UserID)
	assert.Equal(t, 1, view.Standings[0].Rank)
	assert.Equal(t, 50.0, *view.Standings[0].Member.ImprovementPct)
	assert.Equal(t, 2, view.Standings[0].Streak)

	assert.Equal(t, "ana", view.Standings[1].Member.UserID)
	assert.Equal(t, 25.0, *view.Standings[1].Member.ImprovementPct)

	assert.Equal(t, "cy", view.Standings[2].Member.UserID)
	assert.Nil(t, view.Standings[2].Member.ImprovementPct)
	assert.Equal(t, 0, view.Standings[2].Streak)

	_, err = svc.GetRoom(ctx, "stranger", room.ID)
	assert.ErrorIs(t, err, leaderboard.ErrNotMember)
}

func TestService_ListSubmissions(t *testing.T) {
	svc, clock, _ := newTestService(t, staticFlags{})
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "ana", "Ana", "Club")
	require.NoError(t, err)

	for _, score := range []int{40, 50, 60} {
		_, err := svc.SubmitScore(ctx, "ana", room.ID, result(score))
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	subs, err := svc.ListSubmissions(ctx, "ana", room.ID, 2)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, 60, subs[0].Score)
	assert.Equal(t, 50, subs[1].Score)
	assert.Equal(t, "Ana", subs[0].DisplayName)

	_, err = svc.ListSubmissions(ctx, "stranger", room.ID, 10)
	assert.ErrorIs(t, err, leaderboard.ErrNotMember)
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := leaderboard.GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, leaderboard.CodeLength)
		assert.Equal(t, code, leaderboard.NormalizeCode(code))
		seen[code] = true
	}
	assert.Greater(t, len(seen), 40)
}
