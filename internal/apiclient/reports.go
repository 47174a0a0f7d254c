package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/toxitrace/toxitrace/internal/models"
)

// recentReportsPerPatient bounds PatientInfo.RecentReports
const recentReportsPerPatient = 5

// SubmitReport files a symptom report for the current user
func (c *Client) SubmitReport(ctx context.Context, req models.SubmitReportRequest) (*models.Report, error) {
	if req.InputLanguage == "" {
		req.InputLanguage = "en"
	}
	if req.InputType == "" {
		req.InputType = "text"
	}
	if req.Region == "" {
		req.Region = req.Location
	}

	var report models.Report
	if err := c.do(ctx, http.MethodPost, "/reports/create", req, true, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListUserReports returns the reports filed by the current user
func (c *Client) ListUserReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := c.do(ctx, http.MethodGet, "/reports/user", nil, true, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// ListAllReports returns every report. The backend answers either with a
// bare array or with a paginated {"reports": [...]} object.
func (c *Client) ListAllReports(ctx context.Context) ([]models.Report, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/reports/all", nil, true, &raw); err != nil {
		return nil, err
	}

	var reports []models.Report
	if err := json.Unmarshal(raw, &reports); err == nil {
		return reports, nil
	}

	var page struct {
		Reports []models.Report `json:"reports"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return page.Reports, nil
}

// GetReport returns one report by ID
func (c *Client) GetReport(ctx context.Context, reportID string) (*models.Report, error) {
	var report models.Report
	if err := c.do(ctx, http.MethodGet, "/reports/"+url.PathEscape(reportID), nil, true, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListActiveAlerts returns the alerts currently raised
func (c *Client) ListActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := c.do(ctx, http.MethodGet, "/alerts/active", nil, true, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// DashboardSummary returns the backend's aggregate statistics
func (c *Client) DashboardSummary(ctx context.Context) (models.DashboardSummary, error) {
	var summary models.DashboardSummary
	if err := c.do(ctx, http.MethodGet, "/dashboard/summary", nil, true, &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// HeatmapData returns the report density data behind the EPA map
func (c *Client) HeatmapData(ctx context.Context) (models.HeatmapData, error) {
	var data models.HeatmapData
	if err := c.do(ctx, http.MethodGet, "/dashboard/heatmap", nil, true, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// PatientsFromReports fetches all reports and groups them per patient
func (c *Client) PatientsFromReports(ctx context.Context) ([]models.PatientInfo, error) {
	reports, err := c.ListAllReports(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByPatient(reports), nil
}

// GroupByPatient groups reports by user ID. Each patient's reports are
// sorted newest first and truncated to the five most recent; patients are
// sorted by their latest report, newest first. Reports without a user ID
// are skipped.
func GroupByPatient(reports []models.Report) []models.PatientInfo {
	byUser := make(map[string][]models.Report)
	var order []string
	for _, r := range reports {
		if r.UserID == "" {
			continue
		}
		if _, seen := byUser[r.UserID]; !seen {
			order = append(order, r.UserID)
		}
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	patients := make([]models.PatientInfo, 0, len(order))
	for _, userID := range order {
		userReports := byUser[userID]
		sort.SliceStable(userReports, func(i, j int) bool {
			return userReports[i].CreatedAt.After(userReports[j].CreatedAt.Time)
		})

		recent := userReports
		if len(recent) > recentReportsPerPatient {
			recent = recent[:recentReportsPerPatient]
		}

		patients = append(patients, models.PatientInfo{
			UserID:           userID,
			TotalReports:     len(userReports),
			RecentReports:    recent,
			LatestReportDate: userReports[0].CreatedAt,
		})
	}

	sort.SliceStable(patients, func(i, j int) bool {
		return patients[i].LatestReportDate.After(patients[j].LatestReportDate.Time)
	})
	return patients
}
