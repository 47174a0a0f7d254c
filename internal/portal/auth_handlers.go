package portal

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/navigation"
	"github.com/toxitrace/toxitrace/internal/session"
)

// LoginRequest represents a login form or JSON body
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
	Portal   string `json:"portal" form:"portal" binding:"omitempty,portal"`
}

// RegisterRequest represents a registration form or JSON body. Field
// validation happens in models.RegisterForm.
type RegisterRequest struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	Username    string `json:"username" form:"username"`
	FullName    string `json:"full_name" form:"full_name"`
	PhoneNumber string `json:"phone_number" form:"phone_number"`
	Name        string `json:"name" form:"name"`
}

// AuthResponse is returned by login and register to JSON clients
type AuthResponse struct {
	Redirect string       `json:"redirect"`
	User     *models.User `json:"user"`
}

// SessionResponse describes the portal's current session
type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
	User          *models.User `json:"user"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

type portalInfo struct {
	Name       session.Portal `json:"name"`
	Title      string         `json:"title"`
	LoginRoute string         `json:"login_route"`
}

func (s *Server) landing(c *gin.Context) {
	portals := make([]portalInfo, 0, len(session.Portals))
	for _, p := range session.Portals {
		portals = append(portals, portalInfo{Name: p, Title: p.Title(), LoginRoute: p.LoginRoute()})
	}

	c.JSON(http.StatusOK, gin.H{
		"service":       "ToxiTrace",
		"authenticated": s.store.IsAuthenticated(),
		"portals":       portals,
	})
}

func (s *Server) loginPage(p session.Portal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"portal":  p,
			"title":   p.Title() + " login",
			"action":  "/login",
			"landing": p.LandingRoute(),
		})
	}
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := session.ParsePortal(req.Portal)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.Login(c.Request.Context(), req.Email, req.Password, p); err != nil {
		s.authFailed(c, err, "Login failed")
		return
	}

	s.authSucceeded(c, http.StatusOK)
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form := models.RegisterForm{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
	}
	opts := session.RegisterOptions{LandingRoute: navigation.RouteDashboard}
	if err := s.store.Register(c.Request.Context(), form, opts); err != nil {
		s.authFailed(c, err, "Registration failed")
		return
	}

	s.authSucceeded(c, http.StatusCreated)
}

func (s *Server) logout(c *gin.Context) {
	if err := s.store.Logout(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear stored session")
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"redirect": s.history.Current()})
		return
	}
	c.Redirect(http.StatusSeeOther, s.history.Current())
}

func (s *Server) getSession(c *gin.Context) {
	snap := s.store.Snapshot()
	resp := SessionResponse{
		Authenticated: snap.IsAuthenticated(),
		Loading:       snap.Loading,
		User:          snap.User,
	}
	if exp, ok := snap.ExpiresAt(); ok {
		resp.ExpiresAt = &exp
	}
	c.JSON(http.StatusOK, resp)
}

// authSucceeded sends the client to wherever the store navigated
func (s *Server) authSucceeded(c *gin.Context, status int) {
	redirect := s.history.Current()
	if redirect == "" {
		redirect = navigation.RouteDashboard
	}

	if wantsJSON(c) {
		c.JSON(status, AuthResponse{Redirect: redirect, User: s.store.User()})
		return
	}
	c.Redirect(http.StatusSeeOther, redirect)
}

func (s *Server) authFailed(c *gin.Context, err error, fallback string) {
	var (
		authErr *session.AuthError
		valErr  *models.ValidationError
	)

	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error(), "fields": valErr.Fields})
	case errors.Is(err, session.ErrAuthInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &authErr):
		status := http.StatusUnauthorized
		switch {
		case authErr.StatusCode == 0:
			// Rejected by the portal role check
			status = http.StatusForbidden
		case authErr.StatusCode >= 400 && authErr.StatusCode < 500:
			status = authErr.StatusCode
		}
		s.logger.Info().Err(err).Int("status", status).Msg(fallback)
		c.JSON(status, gin.H{"error": authErr.Message})
	default:
		respondWithError(c, s.logger, http.StatusBadGateway, err, fallback)
	}
}
