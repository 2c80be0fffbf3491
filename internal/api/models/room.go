package models

import "github.com/lungbuddy/lungbuddy/internal/risk"

// CreateRoomRequest is the body of POST /v1/rooms.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
}

// JoinRoomRequest is the body of POST /v1/rooms/join.
type JoinRoomRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName,omitempty"`
}

// Validate validates the join request.
func (r *JoinRoomRequest) Validate() []FieldError {
	if r.Code == "" {
		return []FieldError{{Field: "code", Message: "join code is required", Code: "REQUIRED"}}
	}
	return nil
}

// Room is a leaderboard room.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	CreatedBy   string    `json:"createdBy"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// RoomList is the response of GET /v1/rooms.
type RoomList struct {
	Items []Room `json:"items"`
}

// Standing is a ranked room member.
type Standing struct {
	Rank             int        `json:"rank"`
	UserID           string     `json:"userId"`
	DisplayName      string     `json:"displayName"`
	FirstScore       *int       `json:"firstScore"`
	LatestScore      *int       `json:"latestScore"`
	ImprovementPct   *float64   `json:"improvementPct"`
	TotalSubmissions int        `json:"totalSubmissions"`
	Streak           int        `json:"streak"`
	LastSubmittedAt  *Timestamp `json:"lastSubmittedAt,omitempty"`
	JoinedAt         Timestamp  `json:"joinedAt"`
}

// RoomDetail is a room with its standings.
type RoomDetail struct {
	Room
	Standings []Standing `json:"standings"`
}

// SubmitScoreRequest is the body of POST /v1/rooms/{roomId}/submissions.
// The questionnaire is scored on the server.
type SubmitScoreRequest struct {
	Answers risk.RawAnswers `json:"answers"`
}

// Submission is a score posted to a room.
type Submission struct {
	ID          string         `json:"id"`
	RoomID      string         `json:"roomId"`
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName"`
	Score       int            `json:"score"`
	Label       risk.Label     `json:"label"`
	Breakdown   risk.Breakdown `json:"breakdown"`
	SubmittedAt Timestamp      `json:"submittedAt"`
}

// SubmitScoreResponse is the outcome of an accepted submission.
type SubmitScoreResponse struct {
	Submission     Submission `json:"submission"`
	ImprovementPct *float64   `json:"improvementPct"`
	FirstScore     *int       `json:"firstScore"`
}

// SubmissionList is a page of recent submissions.
type SubmissionList struct {
	Items []Submission      `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// RoomInsight is AI feedback for one member.
type RoomInsight struct {
	Name       string `json:"name"`
	Assessment string `json:"assessment"`
	Tip        string `json:"tip"`
	Motivation string `json:"motivation"`
}

// RoomInsights is the response of GET /v1/rooms/{roomId}/insights.
type RoomInsights struct {
	RoomID      string        `json:"roomId"`
	Insights    []RoomInsight `json:"insights"`
	GeneratedAt Timestamp     `json:"generatedAt"`
}
