// Package fakeapi is an in-process stand-in for the ToxiTrace backend used by
// tests. It issues HS256 tokens and stores bcrypt password hashes the way the
// real service does.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/toxitrace/toxitrace/internal/models"
)

var signingKey = []byte("fakeapi-signing-key")

type account struct {
	user         models.User
	passwordHash []byte
}

// Server is a fake backend. Configure it before issuing requests.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	reports  []models.Report
	alerts   []models.Alert
	// paginate wraps /reports/all in {"reports": [...]}
	paginate bool
	// expireTokens makes every authenticated endpoint answer 401
	expireTokens bool
	// loginDelay holds /auth/login responses, for in-flight tests
	loginDelay time.Duration

	chats      []*chat
	images     []models.Image
	lastUpload *Upload
	nextID     int

	loginCalls atomic.Int32
	lastBody   map[string]any
}

// New starts a fake backend that is closed when the test ends
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{accounts: make(map[string]*account)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("POST /auth/register", s.register)
	mux.HandleFunc("GET /auth/me", s.authenticated(s.me))
	mux.HandleFunc("GET /reports/user", s.authenticated(s.userReports))
	mux.HandleFunc("GET /reports/all", s.authenticated(s.allReports))
	mux.HandleFunc("GET /reports/{id}", s.authenticated(s.report))
	mux.HandleFunc("POST /reports/create", s.authenticated(s.createReport))
	mux.HandleFunc("GET /alerts/active", s.authenticated(s.activeAlerts))
	mux.HandleFunc("GET /dashboard/summary", s.authenticated(s.summary))
	mux.HandleFunc("GET /dashboard/heatmap", s.authenticated(s.heatmap))
	mux.HandleFunc("POST /chat/sessions/create", s.authenticated(s.createChat))
	mux.HandleFunc("GET /chat/sessions/report/{id}", s.authenticated(s.chatForReport))
	mux.HandleFunc("GET /chat/sessions/{id}", s.authenticated(s.chatHistory))
	mux.HandleFunc("POST /chat/messages/send", s.authenticated(s.sendMessage))
	mux.HandleFunc("POST /images/upload", s.authenticated(s.uploadImage))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account with the given password
func (s *Server) AddUser(t *testing.T, user models.User, password string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(user.Email)] = &account{user: user, passwordHash: hash}
}

// AddReports appends reports served by the reports endpoints
func (s *Server) AddReports(reports ...models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, reports...)
}

// AddAlerts appends alerts served by /alerts/active
func (s *Server) AddAlerts(alerts ...models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
}

// SetPaginated switches /reports/all to the paginated response shape
func (s *Server) SetPaginated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paginate = v
}

// ExpireTokens makes every authenticated endpoint answer 401
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireTokens = true
}

// SetLoginDelay delays every /auth/login response
func (s *Server) SetLoginDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginDelay = d
}

// LoginCalls returns how many login requests reached the server
func (s *Server) LoginCalls() int {
	return int(s.loginCalls.Load())
}

// LastBody returns the last decoded JSON request body
func (s *Server) LastBody() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody
}

// IssueToken signs a token for userID that expires after ttl
func IssueToken(userID string, ttl time.Duration) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: sign token: %v", err))
	}
	return signed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "invalid JSON"}},
		})
		return nil, false
	}
	s.mu.Lock()
	s.lastBody = body
	s.mu.Unlock()
	return body, true
}

func str(body map[string]any, key string) string {
	v, _ := body[key].(string)
	return v
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)

	s.mu.Lock()
	delay := s.loginDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	body, ok := s.decode(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	acct, exists := s.accounts[strings.ToLower(str(body, "email"))]
	s.mu.Unlock()

	if !exists || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(str(body, "password"))) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	user := acct.user
	writeJSON(w, http.StatusOK, models.AuthResponse{
		AccessToken: IssueToken(user.ID, time.Hour),
		User:        &user,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}

	email := strings.ToLower(str(body, "email"))
	for _, required := range []string{"email", "password", "username", "full_name"} {
		if str(body, required) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": required + " is required"})
			return
		}
	}

	s.mu.Lock()
	_, exists := s.accounts[email]
	nextID := len(s.accounts) + 1
	s.mu.Unlock()
	if exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	user := models.User{
		ID:          fmt.Sprintf("registered-%d", nextID),
		Email:       email,
		Username:    str(body, "username"),
		FullName:    str(body, "full_name"),
		PhoneNumber: str(body, "phone_number"),
		Role:        models.RoleUser,
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(str(body, "password")), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.mu.Lock()
	s.accounts[email] = &account{user: user, passwordHash: hash}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, models.AuthResponse{
		AccessToken: IssueToken(user.ID, time.Hour),
		User:        &user,
	})
}

type ctxUserHandler func(w http.ResponseWriter, r *http.Request, user models.User)

func (s *Server) authenticated(next ctxUserHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		expired := s.expireTokens
		s.mu.Unlock()
		if expired {
			writeDetail(w, http.StatusUnauthorized, "Token has expired")
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
			return signingKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.mu.Lock()
		var user *models.User
		for _, acct := range s.accounts {
			if acct.user.ID == claims.Subject {
				u := acct.user
				user = &u
				break
			}
		}
		s.mu.Unlock()
		if user == nil {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}

		next(w, r, *user)
	}
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, user models.User) {
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) userReports(w http.ResponseWriter, r *http.Request, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Report{}
	for _, rep := range s.reports {
		if rep.UserID == user.ID {
			out = append(out, rep)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) allReports(w http.ResponseWriter, r *http.Request, user models.User) {
	if !user.Role.In([]models.Role{models.RoleHealthAdmin, models.RoleEPAAdmin, models.RoleSuperAdmin}) {
		writeDetail(w, http.StatusForbidden, "Not enough permissions")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reports := append([]models.Report{}, s.reports...)
	if s.paginate {
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "total": len(reports)})
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request, user models.User) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rep := range s.reports {
		if rep.ID == id {
			writeJSON(w, http.StatusOK, rep)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Report not found")
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request, user models.User) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rep := models.Report{
		ID:            fmt.Sprintf("report-%d", len(s.reports)+1),
		UserID:        user.ID,
		OriginalInput: str(body, "original_input"),
		Location:      str(body, "location"),
		InputLanguage: str(body, "input_language"),
		Region:        str(body, "region"),
		Status:        "pending",
		CreatedAt:     models.Timestamp{Time: time.Now().UTC()},
	}
	s.reports = append(s.reports, rep)
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) activeAlerts(w http.ResponseWriter, r *http.Request, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Alert{}
	for _, a := range s.alerts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_reports": len(s.reports),
		"active_alerts": len(s.alerts),
	})
}
