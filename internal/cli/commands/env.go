package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/toxitrace/toxitrace/internal/apiclient"
	"github.com/toxitrace/toxitrace/internal/cli/portalselect"
	"github.com/toxitrace/toxitrace/internal/cli/userconfig"
	"github.com/toxitrace/toxitrace/internal/config"
	"github.com/toxitrace/toxitrace/internal/navigation"
	"github.com/toxitrace/toxitrace/internal/session"
	"github.com/toxitrace/toxitrace/internal/storage"
)

// Binary is the CLI executable name used in messages
const Binary = "toxitrace"

// ErrNotLoggedIn is returned by commands that need a session
var ErrNotLoggedIn = errors.New("not logged in. Please run 'toxitrace login' first")

// Env carries the dependencies shared by every command
type Env struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Out     io.Writer
	Version string

	// Interactive reports whether stdin is a terminal
	Interactive bool
	// ReadPassword prompts for a password without echo
	ReadPassword func(prompt string) (string, error)
	// PromptPortal asks which portal to log in to
	PromptPortal portalselect.Prompter
	// OpenStorage opens the session backend
	OpenStorage func(storage.Options) (storage.Storage, error)
	// Navigator receives session and guard navigations
	Navigator navigation.Navigator
	// HTTPClient overrides the API client transport
	HTTPClient *http.Client
	// OpenBrowser opens a URL in the default browser
	OpenBrowser func(url string) error
}

// DefaultEnv wires the production dependencies
func DefaultEnv(cfg *config.Config, logger zerolog.Logger, version string) *Env {
	return &Env{
		Config:       cfg,
		Logger:       logger,
		Out:          os.Stdout,
		Version:      version,
		Interactive:  term.IsTerminal(int(syscall.Stdin)),
		ReadPassword: readTerminalPassword,
		PromptPortal: portalselect.PromptPortalSelection,
		OpenStorage:  storage.Open,
		Navigator: &navigation.Terminal{
			Out:      os.Stdout,
			Binary:   Binary,
			Remember: userconfig.SetLastRoute,
		},
		HTTPClient:  &http.Client{Timeout: cfg.API.Timeout},
		OpenBrowser: openBrowser,
	}
}

func readTerminalPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func (e *Env) navigator() navigation.Navigator {
	if e.Navigator == nil {
		return navigation.Discard
	}
	return e.Navigator
}

// openSession builds the API client and a hydrated session store over the
// configured storage. Callers must Close the store.
func (e *Env) openSession() (*session.Store, *apiclient.Client, error) {
	open := e.OpenStorage
	if open == nil {
		open = storage.Open
	}

	st, err := open(e.Config.StorageOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	if f, ok := st.(*storage.File); ok {
		e.Logger.Debug().Str("path", f.Path()).Msg("Using session file")
	}

	opts := []apiclient.Option{apiclient.WithLogger(e.Logger)}
	if e.HTTPClient != nil {
		opts = append(opts, apiclient.WithHTTPClient(e.HTTPClient))
	}
	client := apiclient.New(e.Config.API.URL, opts...)

	store := session.New(st, client,
		session.WithNavigator(e.navigator()),
		session.WithLogger(e.Logger),
	)
	client.SetTokenSource(store)
	client.OnUnauthorized(store.Expire)

	store.Hydrate()
	return store, client, nil
}

func (e *Env) closeSession(store *session.Store) {
	if err := store.Close(); err != nil {
		e.Logger.Warn().Err(err).Msg("Failed to close session storage")
	}
}
