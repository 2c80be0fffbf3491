package leaderboard

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/api/models"
	"github.com/lungbuddy/lungbuddy/internal/risk"
)

// Validation constants.
const (
	MaxRoomNameLength    = 60
	MaxDisplayNameLength = 40
	MinCodeLength        = 4
	CodeLength           = 6

	// CodeAlphabet omits characters that are easy to confuse (I, O, 0, 1).
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// DefaultCooldown is used when no flag source is configured.
	DefaultCooldown = 24 * time.Hour

	// EventScoreSubmitted is published after every accepted submission.
	EventScoreSubmitted = "score.submitted"

	maxCodeAttempts = 5
	streakWindow    = 400 * 24 * time.Hour
	maxStreakRows   = 10000
)

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// FlagSource provides runtime settings for submissions.
type FlagSource interface {
	AreSubmissionsDisabled(ctx context.Context) bool
	SubmissionCooldown(ctx context.Context) time.Duration
}

// ScoreSubmitted is the payload of EventScoreSubmitted.
type ScoreSubmitted struct {
	RoomID         string   `json:"roomId"`
	UserID         string   `json:"userId"`
	SubmissionID   string   `json:"submissionId"`
	Score          int      `json:"score"`
	ImprovementPct *float64 `json:"improvementPct,omitempty"`
	SubmittedAt    string   `json:"submittedAt"`
}

// ServiceConfig holds configuration for the leaderboard service.
type ServiceConfig struct {
	Repository Repository
	Publisher  Publisher
	Flags      FlagSource
	Logger     zerolog.Logger

	// Location defines calendar days for streaks (default UTC).
	Location *time.Location

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service provides leaderboard operations.
type Service struct {
	repo      Repository
	publisher Publisher
	flags     FlagSource
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewService creates a new leaderboard service.
func NewService(cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      cfg.Repository,
		publisher: cfg.Publisher,
		flags:     cfg.Flags,
		logger:    cfg.Logger,
		loc:       loc,
		now:       now,
	}
}

// RoomView is a room with its ranked members.
type RoomView struct {
	Room      *Room
	Standings []Standing
}

// SubmitResult is the outcome of an accepted submission.
type SubmitResult struct {
	Submission *Submission
	Member     *Member
}

// CreateRoom creates a room with the caller as its first member.
func (s *Service) CreateRoom(ctx context.Context, userID, displayName, name string) (*Room, error) {
	name = strings.TrimSpace(name)
	displayName = strings.TrimSpace(displayName)

	var errs []models.FieldError
	errs = append(errs, validateText("name", name, MaxRoomNameLength)...)
	errs = append(errs, validateText("displayName", displayName, MaxDisplayNameLength)...)
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	now := s.now()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}

		room := &Room{
			ID:          "room_" + uuid.New().String()[:22],
			Name:        name,
			Code:        code,
			CreatedBy:   userID,
			MemberCount: 1,
			CreatedAt:   now,
		}
		creator := &Member{
			RoomID:      room.ID,
			UserID:      userID,
			DisplayName: displayName,
			JoinedAt:    now,
		}

		err = s.repo.CreateRoom(ctx, room, creator)
		if errors.Is(err, ErrCodeTaken) {
			s.logger.Debug().Str("code", code).Msg("room code collision, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}

		s.logger.Info().Str("room_id", room.ID).Str("user_id", userID).Msg("room created")
		return room, nil
	}

	return nil, ErrCodeTaken
}

// JoinRoom adds the caller to the room with the given join code. Joining a
// room twice is a no-op.
func (s *Service) JoinRoom(ctx context.Context, userID, displayName, code string) (*Room, error) {
	code = NormalizeCode(code)
	displayName = strings.TrimSpace(displayName)

	var errs []models.FieldError
	if len(code) < MinCodeLength {
		errs = append(errs, models.FieldError{Field: "code", Message: "must be at least 4 characters"})
	}
	errs = append(errs, validateText("displayName", displayName, MaxDisplayNameLength)...)
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	room, err := s.repo.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	added, err := s.repo.AddMember(ctx, &Member{
		RoomID:      room.ID,
		UserID:      userID,
		DisplayName: displayName,
		JoinedAt:    s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	if added {
		room.MemberCount++
		s.logger.Info().Str("room_id", room.ID).Str("user_id", userID).Msg("member joined room")
	}

	return room, nil
}

// ListRooms returns the rooms the caller belongs to.
func (s *Service) ListRooms(ctx context.Context, userID string) ([]*Room, error) {
	return s.repo.ListRoomsForUser(ctx, userID)
}

// GetRoom returns a room with its standings. The caller must be a member.
func (s *Service) GetRoom(ctx context.Context, userID, roomID string) (*RoomView, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	standings, err := s.Standings(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return &RoomView{Room: room, Standings: standings}, nil
}

// Standings ranks the members of a room and computes their streaks.
func (s *Service) Standings(ctx context.Context, roomID string) ([]Standing, error) {
	members, err := s.repo.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	submissions, err := s.repo.ListSubmissions(ctx, roomID, SubmissionListOptions{
		Since: now.Add(-streakWindow),
		Limit: maxStreakRows,
	})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	byUser := make(map[string][]time.Time, len(members))
	for _, sub := range submissions {
		byUser[sub.UserID] = append(byUser[sub.UserID], sub.SubmittedAt)
	}

	ranked := Rank(members)
	standings := make([]Standing, 0, len(ranked))
	for i, m := range ranked {
		standings = append(standings, Standing{
			Rank:   i + 1,
			Member: m,
			Streak: Streak(byUser[m.UserID], now, s.loc),
		})
	}
	return standings, nil
}

// SubmitScore records a score for the caller in a room, enforcing the
// submission cooldown.
func (s *Service) SubmitScore(ctx context.Context, userID, roomID string, result risk.Result) (*SubmitResult, error) {
	if s.flags != nil && s.flags.AreSubmissionsDisabled(ctx) {
		return nil, ErrSubmissionsDisabled
	}

	member, err := s.repo.GetMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			if _, roomErr := s.repo.GetRoom(ctx, roomID); roomErr != nil {
				return nil, roomErr
			}
			return nil, ErrNotMember
		}
		return nil, err
	}

	now := s.now()
	if member.LastSubmittedAt != nil {
		cooldown := s.cooldown(ctx)
		if elapsed := now.Sub(*member.LastSubmittedAt); elapsed < cooldown {
			return nil, &CooldownError{
				NextAllowedAt: member.LastSubmittedAt.Add(cooldown),
				Remaining:     cooldown - elapsed,
			}
		}
	}

	score := result.Score
	if member.FirstScore == nil {
		member.FirstScore = &score
		member.ImprovementPct = nil
	} else {
		pct := ImprovementPct(*member.FirstScore, score)
		member.ImprovementPct = &pct
	}
	member.LatestScore = &score
	member.TotalSubmissions++
	member.LastSubmittedAt = &now

	submission := &Submission{
		ID:          "sub_" + uuid.New().String()[:22],
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: member.DisplayName,
		Score:       score,
		Label:       result.Label,
		Breakdown:   result.Breakdown,
		SubmittedAt: now,
	}

	if err := s.repo.RecordSubmission(ctx, submission, member); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	s.logger.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Int("score", score).
		Int("total_submissions", member.TotalSubmissions).
		Msg("score submitted")

	s.publish(ctx, submission, member)

	return &SubmitResult{Submission: submission, Member: member}, nil
}

// ListSubmissions returns the most recent submissions of a room. The caller
// must be a member.
func (s *Service) ListSubmissions(ctx context.Context, userID, roomID string, limit int) ([]*Submission, error) {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListSubmissions(ctx, roomID, SubmissionListOptions{Limit: limit})
}

func (s *Service) requireMember(ctx context.Context, roomID, userID string) error {
	_, err := s.repo.GetMember(ctx, roomID, userID)
	if errors.Is(err, ErrMemberNotFound) {
		return ErrNotMember
	}
	return err
}

func (s *Service) cooldown(ctx context.Context) time.Duration {
	if s.flags == nil {
		return DefaultCooldown
	}
	return s.flags.SubmissionCooldown(ctx)
}

func (s *Service) publish(ctx context.Context, sub *Submission, m *Member) {
	if s.publisher == nil {
		return
	}

	event := ScoreSubmitted{
		RoomID:         sub.RoomID,
		UserID:         sub.UserID,
		SubmissionID:   sub.ID,
		Score:          sub.Score,
		ImprovementPct: m.ImprovementPct,
		SubmittedAt:    sub.SubmittedAt.UTC().Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, EventScoreSubmitted, event); err != nil {
		s.logger.Warn().Err(err).Str("room_id", sub.RoomID).Msg("failed to publish score submitted event")
	}
}

// NormalizeCode trims and upper-cases a join code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateCode returns a random join code drawn from CodeAlphabet.
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func validateText(field, value string, maxLen int) []models.FieldError {
	if value == "" {
		return []models.FieldError{{Field: field, Message: "is required"}}
	}
	if utf8.RuneCountInString(value) > maxLen {
		return []models.FieldError{{Field: field, Message: fmt.Sprintf("must be at most %d characters", maxLen)}}
	}
	return nil
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
