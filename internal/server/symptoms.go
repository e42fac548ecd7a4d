package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

type symptomsResponse struct {
	Success  bool                    `json:"success"`
	Analysis *entity.SymptomAnalysis `json:"analysis"`
}

func (s *Server) handleAnalyzeSymptoms(c echo.Context) error {
	var sub entity.SymptomSubmission
	if err := c.Bind(&sub); err != nil {
		return c.JSON(http.StatusBadRequest, failureResponse{Message: "Invalid JSON"})
	}

	o := s.deps.Analyzer.AnalyzeSymptoms(c.Request().Context(), sub)
	if o.OK() {
		return c.JSON(http.StatusOK, symptomsResponse{Success: true, Analysis: &o.Result})
	}

	status, body := symptomFailure(o.Err)
	return c.JSON(status, body)
}

// symptomFailure maps a failed symptom unit onto the user-facing answer.
func symptomFailure(err error) (int, failureResponse) {
	switch {
	case errors.Is(err, common.ErrEmptyInput):
		return http.StatusBadRequest, failureResponse{
			Message: "Please provide a description of your symptoms",
		}
	case errors.Is(err, common.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, failureResponse{
			Message: "The AI service is temporarily unavailable. Please try again in a few minutes.",
			Error:   "Service temporarily unavailable",
		}
	case errors.Is(err, common.ErrInvalidSchema), errors.Is(err, common.ErrUnparsableResponse):
		return http.StatusInternalServerError, failureResponse{
			Message: "Unable to process the symptoms analysis. Please try again or rephrase your symptoms.",
			Error:   "Processing error",
		}
	default:
		return http.StatusInternalServerError, failureResponse{
			Message: "An error occurred while analyzing symptoms. Please try again.",
			Error:   err.Error(),
		}
	}
}
