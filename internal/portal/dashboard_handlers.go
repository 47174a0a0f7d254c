package portal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/toxitrace/toxitrace/internal/apiclient"
	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/navigation"
)

// SubmitReportRequest represents a new symptom report
type SubmitReportRequest struct {
	OriginalInput string   `json:"original_input" binding:"required"`
	InputLanguage string   `json:"input_language" binding:"omitempty,oneof=en tw"`
	InputType     string   `json:"input_type" binding:"omitempty,oneof=text voice"`
	Location      string   `json:"location" binding:"required"`
	Latitude      *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude     *float64 `json:"longitude" binding:"omitempty,longitude"`
	Region        string   `json:"region"`
}

func (s *Server) citizenDashboard(c *gin.Context) {
	user, _ := CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"reports": navigation.RouteDashboard + "/reports",
	})
}

func (s *Server) listReports(c *gin.Context) {
	reports, err := s.backend.ListUserReports(c.Request.Context())
	if err != nil {
		s.backendFailed(c, err, "Failed to load reports")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (s *Server) submitReport(c *gin.Context) {
	var req SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.backend.SubmitReport(c.Request.Context(), models.SubmitReportRequest{
		OriginalInput: req.OriginalInput,
		InputLanguage: req.InputLanguage,
		InputType:     req.InputType,
		Location:      req.Location,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Region:        req.Region,
	})
	if err != nil {
		s.backendFailed(c, err, "Failed to submit report")
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (s *Server) summary(c *gin.Context) {
	summary, err := s.backend.DashboardSummary(c.Request.Context())
	if err != nil {
		s.backendFailed(c, err, "Failed to load dashboard summary")
		return
	}
	user, _ := CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": user, "summary": summary})
}

func (s *Server) listPatients(c *gin.Context) {
	patients, err := s.backend.PatientsFromReports(c.Request.Context())
	if err != nil {
		s.backendFailed(c, err, "Failed to load patients")
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": patients, "total": len(patients)})
}

func (s *Server) listAlerts(c *gin.Context) {
	alerts, err := s.backend.ListActiveAlerts(c.Request.Context())
	if err != nil {
		s.backendFailed(c, err, "Failed to load alerts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": len(alerts)})
}

// backendFailed maps API client errors onto portal responses. An expired
// token has already cleared the session, so the visitor is sent to log in.
func (s *Server) backendFailed(c *gin.Context, err error, message string) {
	if errors.Is(err, apiclient.ErrSessionExpired) {
		s.logger.Info().Err(err).Msg("Session expired during request")
		c.Redirect(http.StatusFound, navigation.RouteLogin)
		c.Abort()
		return
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		respondWithError(c, s.logger, http.StatusForbidden, err, apiErr.MessageOr(message))
		return
	}

	respondWithError(c, s.logger, http.StatusBadGateway, err, message)
}
