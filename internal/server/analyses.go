package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type analysesResponse struct {
	Success  bool                    `json:"success"`
	Analyses []entity.AnalysisRecord `json:"analyses"`
}

func callerID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(common.UserIDFromContext(c.Request().Context()))
}

func (s *Server) handleListAnalyses(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Authentication required"})
	}

	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, failureResponse{Message: "limit must be a positive integer"})
		}
		limit = min(n, maxListLimit)
	}

	recs, err := s.deps.Analyses.ListByUser(c.Request().Context(), userID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, analysesResponse{Success: true, Analyses: recs})
}

func (s *Server) handleExportAnalyses(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Authentication required"})
	}

	data, err := s.deps.Exporter.ExportAnalysesXLSX(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("analyses-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}
