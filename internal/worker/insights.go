package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/advice"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
)

// StandingsSource ranks the members of a room.
type StandingsSource interface {
	Standings(ctx context.Context, roomID string) ([]leaderboard.Standing, error)
}

// InsightsGenerator regenerates cached room insights.
type InsightsGenerator interface {
	RefreshRoomInsights(ctx context.Context, roomID string, standings []leaderboard.Standing) (*advice.RoomInsights, error)
	InvalidateRoomInsights(ctx context.Context, roomID string) error
}

// InsightsJob regenerates room insights after a score is submitted.
type InsightsJob struct {
	standings StandingsSource
	insights  InsightsGenerator
	logger    zerolog.Logger
}

// NewInsightsJob creates a new InsightsJob.
func NewInsightsJob(standings StandingsSource, insights InsightsGenerator, logger zerolog.Logger) *InsightsJob {
	return &InsightsJob{
		standings: standings,
		insights:  insights,
		logger:    logger,
	}
}

// HandleScoreSubmitted refreshes the insights of the room a score was posted
// to. When AI insights are disabled the cached insights are dropped so the API
// does not serve outdated coaching.
func (j *InsightsJob) HandleScoreSubmitted(ctx context.Context, event leaderboard.ScoreSubmitted) error {
	if event.RoomID == "" {
		return errors.New("score submitted event has no room id")
	}

	standings, err := j.standings.Standings(ctx, event.RoomID)
	if err != nil {
		if errors.Is(err, leaderboard.ErrRoomNotFound) {
			j.logger.Warn().Str("room_id", event.RoomID).Msg("room deleted before insights refresh")
			return nil
		}
		return fmt.Errorf("loading standings: %w", err)
	}

	insights, err := j.insights.RefreshRoomInsights(ctx, event.RoomID, standings)
	switch {
	case errors.Is(err, advice.ErrAIDisabled):
		if err := j.insights.InvalidateRoomInsights(ctx, event.RoomID); err != nil {
			return fmt.Errorf("invalidating insights: %w", err)
		}
		return nil
	case errors.Is(err, advice.ErrInvalidResponse):
		// A malformed completion will not improve on redelivery.
		j.logger.Warn().Err(err).Str("room_id", event.RoomID).Msg("discarding invalid insights response")
		return j.insights.InvalidateRoomInsights(ctx, event.RoomID)
	case err != nil:
		return fmt.Errorf("generating insights: %w", err)
	}

	j.logger.Info().
		Str("room_id", event.RoomID).
		Str("submission_id", event.SubmissionID).
		Int("insights", len(insights.Insights)).
		Msg("room insights refreshed")
	return nil
}
