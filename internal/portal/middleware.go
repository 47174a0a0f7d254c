package portal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/toxitrace/toxitrace/internal/guard"
	"github.com/toxitrace/toxitrace/internal/models"
)

const (
	userContextKey = "user"
	// loadingRetryAfter is the Retry-After value, in seconds, sent while the
	// session is still hydrating
	loadingRetryAfter = "1"
)

var (
	ErrNotSignedIn    = errors.New("not signed in")
	ErrRoleNotAllowed = errors.New("role not allowed")
)

func setUser(c *gin.Context, user *models.User) {
	c.Set(userContextKey, user)
}

// CurrentUser returns the user attached by GuardMiddleware
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}

	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// GuardMiddleware gates a route group on the session state and cfg's role
// allow-list. While the session loads it answers 503 with a placeholder and
// never redirects. Signed-out and forbidden visitors are redirected to
// cfg.RedirectPath.
func GuardMiddleware(src guard.Source, cfg guard.Config, log zerolog.Logger) gin.HandlerFunc {
	cfg = cfg.WithDefaults()

	return func(c *gin.Context) {
		snap := src.Snapshot()
		d := guard.Classify(snap, cfg)

		switch d.State {
		case guard.Indeterminate:
			c.Header("Retry-After", loadingRetryAfter)
			c.String(http.StatusServiceUnavailable, "Loading...")
			c.Abort()

		case guard.Unauthenticated, guard.Forbidden:
			err := ErrNotSignedIn
			if d.State == guard.Forbidden {
				err = ErrRoleNotAllowed
			}
			log.Debug().
				Err(err).
				Str("path", c.Request.URL.Path).
				Str("role", string(snap.Role())).
				Str("redirect", d.RedirectTo).
				Msg("Guard redirect")
			c.Redirect(http.StatusFound, d.RedirectTo)
			c.Abort()

		default:
			setUser(c, snap.User)
			c.Next()
		}
	}
}
