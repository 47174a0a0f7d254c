package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/toxitrace/toxitrace/internal/models"
)

// whoamiOutput is the structured form of the whoami command
type whoamiOutput struct {
	User      *models.User `json:"user" yaml:"user"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired   bool         `json:"expired" yaml:"expired"`
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(e *Env) *cobra.Command {
	var output string
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), e, output, remote)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&remote, "remote", false, "Verify the session with the server")

	return cmd
}

func runWhoami(ctx context.Context, e *Env, output string, remote bool) error {
	if err := validateOutput(output); err != nil {
		return err
	}

	store, client, err := e.openSession()
	if err != nil {
		return err
	}
	defer e.closeSession(store)

	if !store.IsAuthenticated() {
		return ErrNotLoggedIn
	}

	user := store.User()
	if remote {
		// A 401 here expires the stored session
		if user, err = client.Me(ctx); err != nil {
			return fmt.Errorf("failed to verify session: %w", err)
		}
	}

	out := whoamiOutput{User: user}
	if exp, ok := store.Snapshot().ExpiresAt(); ok {
		out.ExpiresAt = &exp
		out.Expired = time.Now().After(exp)
	}

	if output != outputText {
		return writeStructured(e.Out, output, out)
	}

	fmt.Fprintf(e.Out, "User:  %s (%s)\n", displayName(user), user.Email)
	fmt.Fprintf(e.Out, "ID:    %s\n", user.ID)
	fmt.Fprintf(e.Out, "Role:  %s\n", user.Role)
	if out.ExpiresAt != nil {
		state := "expires"
		if out.Expired {
			state = "expired"
		}
		fmt.Fprintf(e.Out, "Token: %s %s\n", state, out.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}
