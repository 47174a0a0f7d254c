package portalselect

import (
	"errors"
	"testing"

	"github.com/toxitrace/toxitrace/internal/cli/userconfig"
	"github.com/toxitrace/toxitrace/internal/session"
)

func TestResolvePortal(t *testing.T) {
	tests := []struct {
		name        string
		flag        string
		interactive bool
		lastPortal  string
		picked      session.Portal
		expected    session.Portal
		expectError bool
		expectAsk   session.Portal
	}{
		{name: "flag wins", flag: "epa", interactive: true, expected: session.PortalEPA},
		{name: "flag alias", flag: "health", expected: session.PortalDoctor},
		{name: "invalid flag", flag: "admin", expectError: true},
		{name: "non-interactive default", expected: session.PortalCitizen},
		{name: "prompt defaults to citizen", interactive: true, picked: session.PortalDoctor, expected: session.PortalDoctor, expectAsk: session.PortalCitizen},
		{name: "prompt preselects last portal", interactive: true, lastPortal: "epa", picked: session.PortalEPA, expected: session.PortalEPA, expectAsk: session.PortalEPA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if tt.lastPortal != "" {
				if err := userconfig.SetLastPortal(tt.lastPortal); err != nil {
					t.Fatal(err)
				}
			}

			var asked session.Portal
			prompt := func(def session.Portal) (session.Portal, error) {
				asked = def
				return tt.picked, nil
			}

			got, err := ResolvePortal(tt.flag, tt.interactive, prompt)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("portal = %q, want %q", got, tt.expected)
			}
			if asked != tt.expectAsk {
				t.Errorf("prompt default = %q, want %q", asked, tt.expectAsk)
			}
		})
	}
}

func TestResolvePortal_PromptCancelled(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cancelled := errors.New("^C")
	_, err := ResolvePortal("", true, func(session.Portal) (session.Portal, error) {
		return "", cancelled
	})
	if !errors.Is(err, cancelled) {
		t.Errorf("expected cancellation error, got %v", err)
	}
}

func TestRemember(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	Remember(session.PortalDoctor)

	got, err := userconfig.GetLastPortal()
	if err != nil || got != "doctor" {
		t.Errorf("GetLastPortal() = %q, %v", got, err)
	}
}
