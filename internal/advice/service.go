package advice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/cache"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
	"github.com/lungbuddy/lungbuddy/internal/risk"
)

// Errors.
var (
	ErrAIDisabled      = errors.New("ai advice is disabled")
	ErrInvalidResponse = errors.New("invalid ai response")
)

// Source reports where recommendations came from.
type Source string

const (
	SourceRules Source = "rules"
	SourceAI    Source = "ai"
)

// Generator produces a JSON completion for a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// FlagSource toggles AI features at runtime.
type FlagSource interface {
	IsAIAdviceEnabled(ctx context.Context) bool
	IsRoomInsightsEnabled(ctx context.Context) bool
}

// Insight is coaching feedback for one room member.
type Insight struct {
	Name       string `json:"name"`
	Assessment string `json:"assessment"`
	Tip        string `json:"tip"`
	Motivation string `json:"motivation"`
}

// RoomInsights is a cached set of insights for a room.
type RoomInsights struct {
	RoomID      string    `json:"roomId"`
	Insights    []Insight `json:"insights"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Advice is a list of recommendations and where they came from.
type Advice struct {
	Recommendations []Recommendation `json:"recommendations"`
	Source          Source           `json:"source"`
}

// ServiceConfig holds configuration for the advice service.
type ServiceConfig struct {
	// Generator produces AI completions. When nil, only rules are used.
	Generator Generator

	Cache  cache.KVStore
	Flags  FlagSource
	Logger zerolog.Logger

	// InsightsTTL is how long room insights are cached (default: 6 hours).
	InsightsTTL time.Duration

	Now func() time.Time
}

// Service produces recommendations and room insights.
type Service struct {
	generator   Generator
	cache       cache.KVStore
	flags       FlagSource
	logger      zerolog.Logger
	insightsTTL time.Duration
	now         func() time.Time
}

// NewService creates a new advice service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Cache
	if store == nil {
		store = cache.NewMemoryStore()
	}
	ttl := cfg.InsightsTTL
	if ttl == 0 {
		ttl = 6 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		generator:   cfg.Generator,
		cache:       store,
		flags:       cfg.Flags,
		logger:      cfg.Logger,
		insightsTTL: ttl,
		now:         now,
	}
}

// Recommend returns AI recommendations when enabled and available, falling
// back to rule-based recommendations on any failure.
func (s *Service) Recommend(ctx context.Context, q risk.Questionnaire, result risk.Result) Advice {
	recs, err := s.AIRecommendations(ctx, q, result)
	if err == nil {
		return Advice{Recommendations: recs, Source: SourceAI}
	}
	if !errors.Is(err, ErrAIDisabled) {
		s.logger.Warn().Err(err).Msg("ai recommendations failed, using rules")
	}
	return Advice{Recommendations: Rules(q, result), Source: SourceRules}
}

// RecommendationCount returns how many AI recommendations to ask for.
func RecommendationCount(score int) int {
	switch {
	case score >= 80:
		return 2
	case score >= 50:
		return 3
	default:
		return 4
	}
}

// AIRecommendations asks the generator for recommendations targeting the
// worst domains of the breakdown.
func (s *Service) AIRecommendations(ctx context.Context, q risk.Questionnaire, result risk.Result) ([]Recommendation, error) {
	if s.generator == nil || (s.flags != nil && !s.flags.IsAIAdviceEnabled(ctx)) {
		return nil, ErrAIDisabled
	}

	content, err := s.generator.Complete(ctx, RecommendationPrompt(q, result))
	if err != nil {
		return nil, err
	}

	var recs []Recommendation
	if err := decodeList(content, "recommendations", &recs); err != nil {
		return nil, err
	}

	cleaned := recs[:0]
	for _, r := range recs {
		if strings.TrimSpace(r.Text) != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrInvalidResponse
	}
	return cleaned, nil
}

// RecommendationPrompt builds the prompt for personal recommendations.
func RecommendationPrompt(q risk.Questionnaire, result risk.Result) string {
	b := result.Breakdown
	count := RecommendationCount(result.Score)

	focus := "Focus on biggest risks."
	if result.Score >= 80 {
		focus = "Score is good, only mention weak spots."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Lung health advisor. User score: %d/100.\n\n", result.Score)
	fmt.Fprintf(&sb, "AQI: %s, Smoking: %s, Vaping: %s, Mask: %s, Sleep: %sh, Age: %s\n",
		num(q.AQI), q.Smoking, q.Vaping, q.Mask, num(q.SleepHours), num(q.Age))
	fmt.Fprintf(&sb, "Risk lost: Env %s/%s, Behav %s/%s, Bio %s/%s, Sleep %s/%s, Disease %s/%s\n\n",
		num(b.Environmental), num(risk.MaxEnvironmental),
		num(b.Behavioral), num(risk.MaxBehavioral),
		num(b.Biological), num(risk.MaxBiological),
		num(b.Sleep), num(risk.MaxSleep),
		num(b.Disease), num(risk.MaxDisease))
	fmt.Fprintf(&sb, "Give ONLY %d recommendations targeting the WORST risk domains above. %s\n", count, focus)
	sb.WriteString(`Return JSON: {"recommendations":[{"text":"advice","category":"Status|Urgent|Protection|Lifestyle|Medical|Environment","priority":1}]}`)
	return sb.String()
}

// RoomInsights returns cached insights for a room, generating them when missing.
func (s *Service) RoomInsights(ctx context.Context, roomID string, standings []leaderboard.Standing) (*RoomInsights, error) {
	var cached RoomInsights
	err := cache.GetJSON(ctx, s.cache, insightsKey(roomID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("room_id", roomID).Msg("room insights cache read failed")
	}
	return s.RefreshRoomInsights(ctx, roomID, standings)
}

// RefreshRoomInsights regenerates and caches insights for a room.
func (s *Service) RefreshRoomInsights(ctx context.Context, roomID string, standings []leaderboard.Standing) (*RoomInsights, error) {
	if s.generator == nil || (s.flags != nil && !s.flags.IsRoomInsightsEnabled(ctx)) {
		return nil, ErrAIDisabled
	}
	if len(standings) == 0 {
		return &RoomInsights{RoomID: roomID, Insights: []Insight{}, GeneratedAt: s.now()}, nil
	}

	content, err := s.generator.Complete(ctx, InsightsPrompt(standings))
	if err != nil {
		return nil, err
	}

	var insights []Insight
	if err := decodeList(content, "insights", &insights); err != nil {
		return nil, err
	}

	result := &RoomInsights{RoomID: roomID, Insights: insights, GeneratedAt: s.now()}
	if err := cache.SetJSON(ctx, s.cache, insightsKey(roomID), result, s.insightsTTL); err != nil {
		s.logger.Warn().Err(err).Str("room_id", roomID).Msg("room insights cache write failed")
	}

	s.logger.Info().Str("room_id", roomID).Int("insights", len(insights)).Msg("room insights generated")
	return result, nil
}

// InvalidateRoomInsights drops cached insights for a room.
func (s *Service) InvalidateRoomInsights(ctx context.Context, roomID string) error {
	return s.cache.Delete(ctx, insightsKey(roomID))
}

// InsightsPrompt builds the coaching prompt for a room's standings.
func InsightsPrompt(standings []leaderboard.Standing) string {
	lines := make([]string, 0, len(standings))
	for i, st := range standings {
		m := st.Member
		pct := "N/A"
		if m.ImprovementPct != nil {
			sign := ""
			if *m.ImprovementPct > 0 {
				sign = "+"
			}
			pct = sign + num(*m.ImprovementPct) + "%"
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s→%s, Imp: %s",
			i+1, m.DisplayName, optInt(m.FirstScore), optInt(m.LatestScore), pct))
	}

	return "Health coach for lung health app. Members compete on improvement %.\n\n" +
		strings.Join(lines, "\n") +
		"\n\nFor EACH member give assessment, tip, and motivation. Return JSON:\n" +
		`{"insights":[{"name":"name","assessment":"trajectory","tip":"advice","motivation":"competitive nudge"}]}` +
		"\nKeep each field 1-2 sentences."
}

// decodeList accepts either a bare JSON array or an object holding the array
// under key. Objects without key fall back to their first array-valued field.
func decodeList(content, key string, dst any) error {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), dst); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	raw, ok := obj[key]
	if !ok {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := strings.TrimSpace(string(obj[k])); strings.HasPrefix(v, "[") {
				raw = obj[k]
				ok = true
				break
			}
		}
	}
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrInvalidResponse, key)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func insightsKey(roomID string) string {
	return "insights:room:" + roomID
}

func optInt(v *int) string {
	if v == nil {
		return "?"
	}
	return strconv.Itoa(*v)
}
