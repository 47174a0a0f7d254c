package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/toxitrace/toxitrace/internal/apiclient"
	"github.com/toxitrace/toxitrace/internal/cli/userconfig"
	"github.com/toxitrace/toxitrace/internal/config"
	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/navigation"
	"github.com/toxitrace/toxitrace/internal/session"
	"github.com/toxitrace/toxitrace/internal/storage"
	"github.com/toxitrace/toxitrace/internal/testutil/fakeapi"
)

type testEnv struct {
	*Env
	api     *fakeapi.Server
	storage *storage.Memory
	history *navigation.History
	out     *bytes.Buffer
}

// setupTestEnvironment isolates HOME and points the CLI at a fake backend
func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("TOXITRACE_EMAIL", "")
	t.Setenv("TOXITRACE_PASSWORD", "")

	api := fakeapi.New(t)
	api.AddUser(t, models.User{ID: "citizen-1", Email: "ama@example.com", FullName: "Ama Owusu", Role: models.RoleUser}, "pw")
	api.AddUser(t, models.User{ID: "doc-1", Email: "doc@x.com", Role: models.RoleHealthAdmin}, "pw")
	api.AddUser(t, models.User{ID: "epa-1", Email: "epa@x.com", Role: models.RoleEPAAdmin}, "pw")

	cfg, err := config.LoadFrom(map[string]string{
		"TOXITRACE_API_URL": api.URL,
		"TOXITRACE_STORAGE": storage.BackendMemory,
	})
	require.NoError(t, err)

	mem := storage.NewMemory()
	history := navigation.NewHistory()
	out := &bytes.Buffer{}

	env := &Env{
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Out:     out,
		Version: "test",
		OpenStorage: func(storage.Options) (storage.Storage, error) {
			return mem, nil
		},
		Navigator: history,
		OpenBrowser: func(string) error {
			return errors.New("no browser in tests")
		},
	}

	return &testEnv{Env: env, api: api, storage: mem, history: history, out: out}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func (te *testEnv) login(t *testing.T, email string, portal string) {
	t.Helper()
	require.NoError(t, run(t, NewLoginCmd(te.Env), "--email", email, "--password", "pw", "--portal", portal))
	te.out.Reset()
}

func TestLoginCommand_Flags(t *testing.T) {
	cmd := NewLoginCmd(&Env{})

	assert.Equal(t, "login", cmd.Use)
	for _, name := range []string{"email", "password", "portal"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "expected --%s flag to exist", name)
	}
}

func TestLoginCommand_SuccessfulLogin(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewLoginCmd(te.Env), "--email", "ama@example.com", "--password", "pw")
	require.NoError(t, err)

	assert.Contains(t, te.out.String(), "Logging in to the Citizen portal...")
	assert.Contains(t, te.out.String(), "✓ Login successful!")
	assert.Contains(t, te.out.String(), "User: Ama Owusu (ama@example.com)")
	assert.Equal(t, []string{navigation.RouteDashboard}, te.history.Routes())

	token, ok, err := te.storage.Get(storage.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	portal, err := userconfig.GetLastPortal()
	require.NoError(t, err)
	assert.Equal(t, "citizen", portal)
}

func TestLoginCommand_EnvironmentVariables(t *testing.T) {
	te := setupTestEnvironment(t)
	t.Setenv("TOXITRACE_EMAIL", "doc@x.com")
	t.Setenv("TOXITRACE_PASSWORD", "pw")

	require.NoError(t, run(t, NewLoginCmd(te.Env), "--portal", "doctor"))
	assert.Equal(t, navigation.RouteDoctorDashboard, te.history.Current())
}

func TestLoginCommand_DoctorPortalRejectsCitizen(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewLoginCmd(te.Env), "--email", "ama@example.com", "--password", "pw", "--portal", "doctor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Doctor dashboard requires health_admin or super_admin role")

	var authErr *session.AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Zero(t, te.storage.Len())
	assert.Zero(t, te.history.Len())
}

func TestLoginCommand_WrongPassword(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewLoginCmd(te.Env), "--email", "ama@example.com", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, "login failed: Incorrect email or password", err.Error())
}

func TestLoginCommand_MissingEmail(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewLoginCmd(te.Env), "--password", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
	assert.Zero(t, te.api.LoginCalls())
}

func TestLoginCommand_NonInteractiveNeedsPassword(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewLoginCmd(te.Env), "--email", "ama@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required in non-interactive mode")
}

func TestLoginCommand_InvalidPortal(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewLoginCmd(te.Env), "--email", "ama@example.com", "--password", "pw", "--portal", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid portal")
}

func TestLoginCommand_InteractivePrompts(t *testing.T) {
	te := setupTestEnvironment(t)
	te.Interactive = true

	var prompted []string
	te.ReadPassword = func(prompt string) (string, error) {
		prompted = append(prompted, prompt)
		return "pw", nil
	}
	te.PromptPortal = func(def session.Portal) (session.Portal, error) {
		assert.Equal(t, session.PortalCitizen, def)
		return session.PortalEPA, nil
	}

	require.NoError(t, run(t, NewLoginCmd(te.Env), "--email", "epa@x.com"))
	assert.Equal(t, []string{"Password: "}, prompted)
	assert.Equal(t, navigation.RouteEPADashboard, te.history.Current())
}

func TestRegisterCommand(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewRegisterCmd(te.Env),
		"--email", "kofi@example.com",
		"--username", "kofi",
		"--full-name", "Kofi Mensah",
		"--phone", "+233200000000",
		"--password", "secret",
	)
	require.NoError(t, err)

	assert.Contains(t, te.out.String(), "✓ Account created!")
	assert.Equal(t, []string{navigation.RouteDashboard}, te.history.Routes())
	assert.Equal(t, "+233200000000", te.api.LastBody()["phone_number"])
	assert.Equal(t, 2, te.storage.Len())
}

func TestRegisterCommand_ValidationError(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewRegisterCmd(te.Env), "--email", "kofi@example.com", "--password", "secret")

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "username")
	assert.Contains(t, err.Error(), "full_name")
	assert.Nil(t, te.api.LastBody())
}

func TestRegisterCommand_Duplicate(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewRegisterCmd(te.Env),
		"--email", "ama@example.com",
		"--username", "ama",
		"--full-name", "Ama Owusu",
		"--password", "secret",
	)
	require.Error(t, err)
	assert.Equal(t, "registration failed: Email already registered", err.Error())
	assert.Zero(t, te.storage.Len())
}

func TestLogoutCommand(t *testing.T) {
	te := setupTestEnvironment(t)
	te.login(t, "ama@example.com", "citizen")

	require.NoError(t, run(t, NewLogoutCmd(te.Env)))

	assert.Contains(t, te.out.String(), "✓ Logged out")
	assert.Zero(t, te.storage.Len())
	assert.Equal(t, navigation.RouteHome, te.history.Current())

	te.out.Reset()
	require.NoError(t, run(t, NewLogoutCmd(te.Env)))
	assert.Contains(t, te.out.String(), "Not logged in")
}

func TestWhoamiCommand_NotLoggedIn(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewWhoamiCmd(te.Env))
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestWhoamiCommand_Outputs(t *testing.T) {
	te := setupTestEnvironment(t)
	te.login(t, "ama@example.com", "citizen")

	require.NoError(t, run(t, NewWhoamiCmd(te.Env)))
	assert.Contains(t, te.out.String(), "User:  Ama Owusu (ama@example.com)")
	assert.Contains(t, te.out.String(), "Role:  user")
	assert.Contains(t, te.out.String(), "Token: expires")

	te.out.Reset()
	require.NoError(t, run(t, NewWhoamiCmd(te.Env), "--output", "json"))
	var asJSON whoamiOutput
	require.NoError(t, json.Unmarshal(te.out.Bytes(), &asJSON))
	assert.Equal(t, "citizen-1", asJSON.User.ID)
	assert.NotNil(t, asJSON.ExpiresAt)
	assert.False(t, asJSON.Expired)

	te.out.Reset()
	require.NoError(t, run(t, NewWhoamiCmd(te.Env), "-o", "yaml"))
	var asYAML map[string]any
	require.NoError(t, yaml.Unmarshal(te.out.Bytes(), &asYAML))
	user := asYAML["user"].(map[string]any)
	assert.Equal(t, "user", user["role"])

	err := run(t, NewWhoamiCmd(te.Env), "--output", "xml")
	assert.ErrorContains(t, err, "invalid output format")
}

func TestWhoamiCommand_RemoteDetectsExpiry(t *testing.T) {
	te := setupTestEnvironment(t)
	te.login(t, "ama@example.com", "citizen")

	require.NoError(t, run(t, NewWhoamiCmd(te.Env), "--remote"))

	te.api.ExpireTokens()
	err := run(t, NewWhoamiCmd(te.Env), "--remote")
	assert.ErrorIs(t, err, apiclient.ErrSessionExpired)
	assert.Zero(t, te.storage.Len())
	assert.Equal(t, navigation.RouteLogin, te.history.Current())
}

func TestReportsCommand(t *testing.T) {
	te := setupTestEnvironment(t)
	te.api.AddReports(
		models.Report{ID: "r1", UserID: "citizen-1", OriginalInput: "Headache and dizziness near the mine", Status: "pending", Location: "Tarkwa"},
		models.Report{ID: "r2", UserID: "someone-else", OriginalInput: "cough"},
	)

	err := run(t, NewReportsCmd(te.Env))
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, []string{navigation.RouteLogin}, te.history.Routes())

	te.login(t, "ama@example.com", "citizen")

	require.NoError(t, run(t, NewReportsCmd(te.Env)))
	assert.Contains(t, te.out.String(), "r1")
	assert.Contains(t, te.out.String(), "Tarkwa")
	assert.NotContains(t, te.out.String(), "r2")

	te.out.Reset()
	require.NoError(t, run(t, NewReportsCmd(te.Env), "-o", "json"))
	var reports []models.Report
	require.NoError(t, json.Unmarshal(te.out.Bytes(), &reports))
	assert.Len(t, reports, 1)
}

func TestReportsCommand_DefaultGuardRejectsAdmins(t *testing.T) {
	te := setupTestEnvironment(t)
	te.login(t, "doc@x.com", "doctor")

	err := run(t, NewReportsCmd(te.Env))
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "requires user role (signed in as health_admin)")
}

func TestPatientsCommand(t *testing.T) {
	te := setupTestEnvironment(t)
	te.api.AddReports(
		models.Report{ID: "r1", UserID: "citizen-1", OriginalInput: "rash"},
		models.Report{ID: "r2", UserID: "citizen-1", OriginalInput: "rash again"},
		models.Report{ID: "r3", UserID: "citizen-2", OriginalInput: "cough"},
	)

	te.login(t, "ama@example.com", "citizen")
	err := run(t, NewPatientsCmd(te.Env))
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "requires health_admin or super_admin role")
	assert.Equal(t, navigation.RouteDoctorLogin, te.history.Current())

	te.login(t, "doc@x.com", "doctor")
	require.NoError(t, run(t, NewPatientsCmd(te.Env)))
	assert.Contains(t, te.out.String(), "citizen-1")
	assert.Contains(t, te.out.String(), "citizen-2")
}

func TestAlertsCommand(t *testing.T) {
	te := setupTestEnvironment(t)
	te.api.AddAlerts(
		models.Alert{ID: "a1", Severity: "high", AlertType: "cluster", AffectedLocation: "Obuasi", Title: "Arsenic exposure cluster", IsActive: true},
		models.Alert{ID: "a2", IsActive: false},
	)

	te.login(t, "doc@x.com", "doctor")
	err := run(t, NewAlertsCmd(te.Env))
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, navigation.RouteEPALogin, te.history.Current())

	te.login(t, "epa@x.com", "epa")
	require.NoError(t, run(t, NewAlertsCmd(te.Env), "-o", "yaml"))

	var alerts []models.Alert
	require.NoError(t, yaml.Unmarshal(te.out.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "Obuasi", alerts[0].AffectedLocation)
}

func TestDashCommand(t *testing.T) {
	te := setupTestEnvironment(t)

	var opened string
	te.OpenBrowser = func(url string) error {
		opened = url
		return nil
	}

	require.NoError(t, run(t, NewDashCmd(te.Env)))
	assert.Equal(t, "http://localhost:3000/", opened)

	require.NoError(t, userconfig.SetLastRoute(navigation.RouteEPADashboard))
	require.NoError(t, run(t, NewDashCmd(te.Env), "--url", "https://portal.example.com/"))
	assert.Equal(t, "https://portal.example.com/epa-dashboard", opened)
}

func TestDashCommand_BrowserFailure(t *testing.T) {
	te := setupTestEnvironment(t)

	err := run(t, NewDashCmd(te.Env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please visit: http://localhost:3000/")
}

func TestLocalPortalURL(t *testing.T) {
	tests := []struct {
		addr     string
		expected string
	}{
		{":3000", "http://localhost:3000"},
		{"0.0.0.0:8080", "http://localhost:8080"},
		{"portal.internal:3000", "http://portal.internal:3000"},
	}

	for _, tt := range tests {
		if got := localPortalURL(tt.addr); got != tt.expected {
			t.Errorf("localPortalURL(%q) = %q, want %q", tt.addr, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b\tc", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
