package models

import (
	"github.com/lungbuddy/lungbuddy/internal/projection"
	"github.com/lungbuddy/lungbuddy/internal/risk"
)

// AssessmentResponse is a scored questionnaire.
type AssessmentResponse struct {
	Score         int                 `json:"score"`
	Label         risk.Label          `json:"label"`
	Breakdown     risk.Breakdown      `json:"breakdown"`
	Questionnaire *risk.Questionnaire `json:"questionnaire,omitempty"`
}

// NewAssessmentResponse builds a response from a result and, optionally, the
// normalized questionnaire it was computed from.
func NewAssessmentResponse(result risk.Result, q *risk.Questionnaire) AssessmentResponse {
	return AssessmentResponse{
		Score:         result.Score,
		Label:         result.Label,
		Breakdown:     result.Breakdown,
		Questionnaire: q,
	}
}

// BatchAssessmentRequest scores several independent questionnaires.
type BatchAssessmentRequest struct {
	Questionnaires []risk.RawAnswers `json:"questionnaires"`
}

// BatchAssessmentResponse holds results in request order.
type BatchAssessmentResponse struct {
	Results []AssessmentResponse `json:"results"`
}

// ReportRequest requests a full report for one questionnaire.
type ReportRequest struct {
	Answers       risk.RawAnswers          `json:"answers"`
	Interventions projection.Interventions `json:"interventions"`
}

// ReportResponse is a result with projection and recommendations.
type ReportResponse struct {
	AssessmentResponse
	Projection      projection.Projection `json:"projection"`
	Recommendations []Recommendation      `json:"recommendations"`
	AdviceSource    string                `json:"adviceSource"`
}

// Recommendation is a single piece of advice.
type Recommendation struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Priority int    `json:"priority,omitempty"`
}

// ProjectionRequest requests a capacity projection without scoring.
type ProjectionRequest struct {
	projection.Input
	Interventions projection.Interventions `json:"interventions"`
}

// Validate validates the projection request.
func (r *ProjectionRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Age < risk.MinAge || r.Age > risk.MaxAge {
		errs = append(errs, FieldError{Field: "age", Message: "age must be between 10 and 120", Code: "OUT_OF_RANGE"})
	}
	if r.Score < 0 || r.Score > 100 {
		errs = append(errs, FieldError{Field: "score", Message: "score must be between 0 and 100", Code: "OUT_OF_RANGE"})
	}
	if r.CigarettesPerDay < 0 {
		errs = append(errs, FieldError{Field: "cigarettesPerDay", Message: "must not be negative", Code: "OUT_OF_RANGE"})
	}
	if r.AQI < 0 {
		errs = append(errs, FieldError{Field: "aqi", Message: "must not be negative", Code: "OUT_OF_RANGE"})
	}
	if r.SleepHours < 0 || r.SleepHours > 24 {
		errs = append(errs, FieldError{Field: "sleepHours", Message: "sleep hours must be between 0 and 24", Code: "OUT_OF_RANGE"})
	}

	return errs
}
