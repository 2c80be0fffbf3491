package handler

import (
	"net/http"

	"github.com/lungbuddy/lungbuddy/internal/api/models"
	"github.com/lungbuddy/lungbuddy/internal/api/response"
	"github.com/lungbuddy/lungbuddy/internal/assessment"
	"github.com/lungbuddy/lungbuddy/internal/projection"
	"github.com/lungbuddy/lungbuddy/internal/risk"
)

// AssessmentHandler handles scoring endpoints.
type AssessmentHandler struct {
	service *assessment.Service
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(service *assessment.Service) *AssessmentHandler {
	return &AssessmentHandler{service: service}
}

// Compute handles POST /v1/assessments. Any JSON object scores; unknown or
// malformed answers fall back to defaults.
func (h *AssessmentHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var raw risk.RawAnswers
	if !decodeJSON(w, r, &raw) {
		return
	}

	a := h.service.Compute(r.Context(), raw)
	response.JSON(w, r, http.StatusOK, models.NewAssessmentResponse(a.Result, includeQuestionnaire(r, a.Questionnaire)))
}

// ComputeBatch handles POST /v1/assessments/batch.
func (h *AssessmentHandler) ComputeBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchAssessmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := h.service.ComputeBatch(r.Context(), req.Questionnaires)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := models.BatchAssessmentResponse{Results: make([]models.AssessmentResponse, len(results))}
	for i := range results {
		resp.Results[i] = models.NewAssessmentResponse(results[i].Result, includeQuestionnaire(r, results[i].Questionnaire))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Report handles POST /v1/assessments/report.
func (h *AssessmentHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report := h.service.Report(r.Context(), req.Answers, assessment.ReportOptions{
		Interventions: req.Interventions,
	})

	recs := make([]models.Recommendation, len(report.Advice.Recommendations))
	for i, rec := range report.Advice.Recommendations {
		recs[i] = models.Recommendation{
			Text:     rec.Text,
			Category: string(rec.Category),
			Priority: rec.Priority,
		}
	}

	response.JSON(w, r, http.StatusOK, models.ReportResponse{
		AssessmentResponse: models.NewAssessmentResponse(report.Result, &report.Questionnaire),
		Projection:         report.Projection,
		Recommendations:    recs,
		AdviceSource:       string(report.Advice.Source),
	})
}

// Project handles POST /v1/projections.
func (h *AssessmentHandler) Project(w http.ResponseWriter, r *http.Request) {
	var req models.ProjectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	response.JSON(w, r, http.StatusOK, projection.Project(req.Input, req.Interventions))
}

// includeQuestionnaire returns q when the caller asked for the normalized
// answers with ?include=questionnaire.
func includeQuestionnaire(r *http.Request, q risk.Questionnaire) *risk.Questionnaire {
	if r.URL.Query().Get("include") == "questionnaire" {
		return &q
	}
	return nil
}
