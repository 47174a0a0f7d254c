package models

import (
	"encoding/json"
	"slices"
	"time"

	"gorm.io/gorm"
)

// Role is the authorization role the backend assigns to an account
type Role string

const (
	RoleUser        Role = "user"
	RoleEPAAdmin    Role = "epa_admin"
	RoleHealthAdmin Role = "health_admin"
	RoleSuperAdmin  Role = "super_admin"
)

// KnownRoles lists every role the backend issues
var KnownRoles = []Role{RoleUser, RoleEPAAdmin, RoleHealthAdmin, RoleSuperAdmin}

// In reports whether r is a member of roles
func (r Role) In(roles []Role) bool {
	return slices.Contains(roles, r)
}

// User is the account record returned by the auth endpoints and persisted
// under the "user" storage key
type User struct {
	ID          string     `json:"id" yaml:"id"`
	Email       string     `json:"email" yaml:"email"`
	Username    string     `json:"username" yaml:"username"`
	FullName    string     `json:"full_name" yaml:"full_name"`
	PhoneNumber string     `json:"phone_number,omitempty" yaml:"phone_number,omitempty"`
	Role        Role       `json:"role" yaml:"role"`
	IsVerified  bool       `json:"is_verified" yaml:"is_verified"`
	CreatedAt   *Timestamp `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// AuthResponse is the body of a successful login or registration
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// ErrorResponse is the body the backend sends with non-2xx responses
type ErrorResponse struct {
	// Detail is a string for most errors and a list of field errors for
	// request validation failures
	Detail json.RawMessage `json:"detail"`
	Msg    string          `json:"msg"`
}

// Report is a citizen symptom report
type Report struct {
	ID                 string     `json:"id" yaml:"id"`
	UserID             string     `json:"user_id" yaml:"user_id"`
	OriginalInput      string     `json:"original_input" yaml:"original_input"`
	TranslatedInput    string     `json:"translated_input,omitempty" yaml:"translated_input,omitempty"`
	Symptoms           []string   `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`
	Location           string     `json:"location" yaml:"location"`
	Latitude           *float64   `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude          *float64   `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	ToxicityLevel      string     `json:"toxicity_level,omitempty" yaml:"toxicity_level,omitempty"`
	ToxicityLikelihood string     `json:"toxicity_likelihood,omitempty" yaml:"toxicity_likelihood,omitempty"`
	ConfidenceScore    *float64   `json:"confidence_score,omitempty" yaml:"confidence_score,omitempty"`
	SuspectedChemicals []string   `json:"suspected_chemicals,omitempty" yaml:"suspected_chemicals,omitempty"`
	Recommendations    []string   `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	AIDiagnosis        string     `json:"ai_diagnosis,omitempty" yaml:"ai_diagnosis,omitempty"`
	AIDiagnosisTwi     string     `json:"ai_diagnosis_twi,omitempty" yaml:"ai_diagnosis_twi,omitempty"`
	InputLanguage      string     `json:"input_language,omitempty" yaml:"input_language,omitempty"`
	Status             string     `json:"status,omitempty" yaml:"status,omitempty"`
	ChatSessionID      string     `json:"chat_session_id,omitempty" yaml:"chat_session_id,omitempty"`
	Region             string     `json:"region,omitempty" yaml:"region,omitempty"`
	CreatedAt          Timestamp  `json:"created_at" yaml:"created_at"`
	UpdatedAt          *Timestamp `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// SubmitReportRequest is the body of POST /reports/create
type SubmitReportRequest struct {
	OriginalInput string   `json:"original_input"`
	InputLanguage string   `json:"input_language"`
	InputType     string   `json:"input_type"`
	Location      string   `json:"location"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Region        string   `json:"region"`
}

// Alert is an active environmental alert raised from one or more reports
type Alert struct {
	ID               string    `json:"id" yaml:"id"`
	ReportID         string    `json:"report_id" yaml:"report_id"`
	AlertType        string    `json:"alert_type" yaml:"alert_type"`
	Severity         string    `json:"severity" yaml:"severity"`
	Title            string    `json:"title" yaml:"title"`
	Description      string    `json:"description" yaml:"description"`
	AffectedLocation string    `json:"affected_location" yaml:"affected_location"`
	IsActive         bool      `json:"is_active" yaml:"is_active"`
	CreatedAt        Timestamp `json:"created_at" yaml:"created_at"`
}

// PatientInfo groups the reports filed by one user for the doctor dashboard
type PatientInfo struct {
	UserID           string    `json:"user_id" yaml:"user_id"`
	TotalReports     int       `json:"total_reports" yaml:"total_reports"`
	RecentReports    []Report  `json:"recent_reports" yaml:"recent_reports"`
	LatestReportDate Timestamp `json:"latest_report_date" yaml:"latest_report_date"`
}

// DashboardSummary is the backend's aggregate view. Its shape varies between
// backend versions so it is kept as a generic map.
type DashboardSummary map[string]any

// StorageEntry is one key of the SQLite-backed session storage
type StorageEntry struct {
	Key       string    `gorm:"primaryKey;column:entry_key;type:varchar(64)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// AutoMigrate runs database migrations for all local models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&StorageEntry{},
	}

	return db.AutoMigrate(models...)
}
