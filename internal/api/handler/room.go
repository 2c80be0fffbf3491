package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/advice"
	"github.com/lungbuddy/lungbuddy/internal/api/models"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/assessment"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
)

// Submission list limits.
const (
	defaultSubmissionLimit = 20
	maxSubmissionLimit     = 100
)

// RoomHandler handles leaderboard room endpoints.
type RoomHandler struct {
	rooms       *leaderboard.Service
	assessments *assessment.Service
	advice      *advice.Service
}

// NewRoomHandler creates a new RoomHandler. The advice service may be nil, in
// which case room insights are unavailable.
func NewRoomHandler(rooms *leaderboard.Service, assessments *assessment.Service, adviceSvc *advice.Service) *RoomHandler {
	return &RoomHandler{
		rooms:       rooms,
		assessments: assessments,
		advice:      adviceSvc,
	}
}

// ListRooms handles GET /v1/rooms.
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListRooms(r.Context(), GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	list := models.RoomList{Items: make([]models.Room, 0, len(rooms))}
	for _, room := range rooms {
		list.Items = append(list.Items, toRoom(room))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// CreateRoom handles POST /v1/rooms.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), GetUserID(r.Context()), displayName(r, req.DisplayName), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/rooms/"+room.ID, toRoom(room))
}

// JoinRoom handles POST /v1/rooms/join.
func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req models.JoinRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	room, err := h.rooms.JoinRoom(r.Context(), GetUserID(r.Context()), displayName(r, req.DisplayName), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toRoom(room))
}

// GetRoom handles GET /v1/rooms/{roomId}.
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	view, err := h.rooms.GetRoom(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "roomId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.RoomDetail{
		Room:      toRoom(view.Room),
		Standings: toStandings(view.Standings),
	})
}

// SubmitScore handles POST /v1/rooms/{roomId}/submissions. The answers are
// scored on the server so clients cannot post arbitrary scores.
func (h *RoomHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a := h.assessments.Compute(r.Context(), req.Answers)

	res, err := h.rooms.SubmitScore(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "roomId"), a.Result)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, r, "", models.SubmitScoreResponse{
		Submission:     toSubmission(res.Submission),
		ImprovementPct: res.Member.ImprovementPct,
		FirstScore:     res.Member.FirstScore,
	})
}

// ListSubmissions handles GET /v1/rooms/{roomId}/submissions?limit=.
func (h *RoomHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSubmissionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSubmissionLimit {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "limit must be between 1 and 100", Code: "OUT_OF_RANGE"},
			})
			return
		}
		limit = n
	}

	subs, err := h.rooms.ListSubmissions(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "roomId"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list := models.SubmissionList{
		Items: make([]models.Submission, 0, len(subs)),
		Meta:  models.PagedResponseMeta{Limit: limit, Count: len(subs)},
	}
	for _, sub := range subs {
		list.Items = append(list.Items, toSubmission(sub))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetInsights handles GET /v1/rooms/{roomId}/insights.
func (h *RoomHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	if h.advice == nil {
		writeError(w, r, advice.ErrAIDisabled)
		return
	}

	roomID := chi.URLParam(r, "roomId")
	view, err := h.rooms.GetRoom(r.Context(), GetUserID(r.Context()), roomID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	insights, err := h.advice.RoomInsights(r.Context(), roomID, view.Standings)
	if err != nil {
		if !errors.Is(err, advice.ErrAIDisabled) && !errors.Is(err, advice.ErrInvalidResponse) {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("room_id", roomID).Msg("room insights generation failed")
			response.ServiceUnavailable(w, r, "AI insights are temporarily unavailable")
			return
		}
		writeError(w, r, err)
		return
	}

	resp := models.RoomInsights{
		RoomID:      insights.RoomID,
		Insights:    make([]models.RoomInsight, 0, len(insights.Insights)),
		GeneratedAt: models.Timestamp(insights.GeneratedAt),
	}
	for _, in := range insights.Insights {
		resp.Insights = append(resp.Insights, models.RoomInsight(in))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

func toRoom(room *leaderboard.Room) models.Room {
	return models.Room{
		ID:          room.ID,
		Name:        room.Name,
		Code:        room.Code,
		CreatedBy:   room.CreatedBy,
		MemberCount: room.MemberCount,
		CreatedAt:   models.Timestamp(room.CreatedAt),
	}
}

func toStandings(standings []leaderboard.Standing) []models.Standing {
	out := make([]models.Standing, 0, len(standings))
	for _, st := range standings {
		m := st.Member
		out = append(out, models.Standing{
			Rank:             st.Rank,
			UserID:           m.UserID,
			DisplayName:      m.DisplayName,
			FirstScore:       m.FirstScore,
			LatestScore:      m.LatestScore,
			ImprovementPct:   m.ImprovementPct,
			TotalSubmissions: m.TotalSubmissions,
			Streak:           st.Streak,
			LastSubmittedAt:  models.TimestampPtr(m.LastSubmittedAt),
			JoinedAt:         models.Timestamp(m.JoinedAt),
		})
	}
	return out
}

func toSubmission(sub *leaderboard.Submission) models.Submission {
	return models.Submission{
		ID:          sub.ID,
		RoomID:      sub.RoomID,
		UserID:      sub.UserID,
		DisplayName: sub.DisplayName,
		Score:       sub.Score,
		Label:       sub.Label,
		Breakdown:   sub.Breakdown,
		SubmittedAt: models.Timestamp(sub.SubmittedAt),
	}
}
