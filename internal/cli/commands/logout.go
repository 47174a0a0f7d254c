package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(e *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(e)
		},
	}
}

func runLogout(e *Env) error {
	store, _, err := e.openSession()
	if err != nil {
		return err
	}
	defer e.closeSession(store)

	wasSignedIn := store.IsAuthenticated()

	if err := store.Logout(); err != nil {
		return fmt.Errorf("failed to remove saved session: %w", err)
	}

	if wasSignedIn {
		fmt.Fprintln(e.Out, "✓ Logged out")
	} else {
		fmt.Fprintln(e.Out, "Not logged in; nothing to do.")
	}
	return nil
}
