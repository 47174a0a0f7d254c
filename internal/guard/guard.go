// Package guard gates protected views on the session state and a role
// allow-list.
package guard

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/navigation"
	"github.com/toxitrace/toxitrace/internal/session"
)

// State is the outcome of classifying a session against a Config
type State int

const (
	// Indeterminate means the session is still loading. Show a placeholder
	// and never redirect.
	Indeterminate State = iota
	Unauthenticated
	Forbidden
	Authorized
)

func (s State) String() string {
	switch s {
	case Indeterminate:
		return "indeterminate"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Config describes who may see a protected view
type Config struct {
	// AllowedRoles defaults to {user}. An empty list never means "any role".
	AllowedRoles []models.Role
	// RedirectPath defaults to /login
	RedirectPath string
}

// DefaultRoles is the allow-list used when Config.AllowedRoles is empty
var DefaultRoles = []models.Role{models.RoleUser}

// WithDefaults fills unset fields
func (c Config) WithDefaults() Config {
	if len(c.AllowedRoles) == 0 {
		c.AllowedRoles = DefaultRoles
	}
	if c.RedirectPath == "" {
		c.RedirectPath = navigation.RouteLogin
	}
	return c
}

// Decision is the result of Classify. RedirectTo is set only for
// Unauthenticated and Forbidden.
type Decision struct {
	State      State
	RedirectTo string
}

// Allowed reports whether the protected view may render
func (d Decision) Allowed() bool {
	return d.State == Authorized
}

// Classify decides what a protected view should do for snap. It has no side
// effects.
func Classify(snap session.Snapshot, cfg Config) Decision {
	cfg = cfg.WithDefaults()

	switch {
	case snap.Loading:
		return Decision{State: Indeterminate}
	case !snap.IsAuthenticated():
		return Decision{State: Unauthenticated, RedirectTo: cfg.RedirectPath}
	case !snap.User.Role.In(cfg.AllowedRoles):
		return Decision{State: Forbidden, RedirectTo: cfg.RedirectPath}
	default:
		return Decision{State: Authorized}
	}
}

// Source provides session snapshots and change notifications.
// *session.Store implements it.
type Source interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// Guard is a mounted protected view. It re-classifies on every session
// change and navigates at most once per state transition.
type Guard struct {
	src    Source
	cfg    Config
	nav    navigation.Navigator
	logger zerolog.Logger

	mu          sync.Mutex
	last        State
	evaluated   bool
	unsubscribe func()
}

// Option configures a Guard
type Option func(*Guard)

// WithLogger sets the guard logger
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// Mount subscribes a guard to src and evaluates it once
func Mount(src Source, cfg Config, nav navigation.Navigator, opts ...Option) *Guard {
	if nav == nil {
		nav = navigation.Discard
	}
	g := &Guard{
		src:    src,
		cfg:    cfg.WithDefaults(),
		nav:    nav,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}

	unsubscribe := src.Subscribe(func(snap session.Snapshot) {
		g.apply(snap)
	})

	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	g.Evaluate()
	return g
}

// Config returns the effective configuration
func (g *Guard) Config() Config {
	return g.cfg
}

// Evaluate classifies the current snapshot and runs the redirect if the
// state changed since the last evaluation
func (g *Guard) Evaluate() Decision {
	return g.apply(g.src.Snapshot())
}

// Render evaluates the guard and runs placeholder while loading or children
// when authorized. It never runs both. Either func may be nil.
func (g *Guard) Render(placeholder, children func()) Decision {
	d := g.Evaluate()
	switch d.State {
	case Indeterminate:
		if placeholder != nil {
			placeholder()
		}
	case Authorized:
		if children != nil {
			children()
		}
	}
	return d
}

// Unmount stops reacting to session changes
func (g *Guard) Unmount() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (g *Guard) apply(snap session.Snapshot) Decision {
	d := Classify(snap, g.cfg)

	g.mu.Lock()
	changed := !g.evaluated || d.State != g.last
	g.evaluated = true
	g.last = d.State
	g.mu.Unlock()

	if changed && d.RedirectTo != "" {
		g.logger.Debug().
			Str("state", d.State.String()).
			Str("redirect", d.RedirectTo).
			Msg("Guard redirecting")
		g.nav.Navigate(d.RedirectTo)
	}
	return d
}
