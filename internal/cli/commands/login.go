package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toxitrace/toxitrace/internal/cli/portalselect"
	"github.com/toxitrace/toxitrace/internal/models"
)

type loginOptions struct {
	email    string
	password string
	portal   string
}

// NewLoginCmd creates the login command
func NewLoginCmd(e *Env) *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to ToxiTrace",
		Long: `Sign in to ToxiTrace.

The doctor portal requires the health_admin or super_admin role and the EPA
portal requires epa_admin or super_admin. Accounts without the role are
rejected and nothing is saved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "Email address (or set TOXITRACE_EMAIL)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password (or set TOXITRACE_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&opts.portal, "portal", "", "Portal to sign in to: citizen, doctor or epa (prompts if not provided)")

	return cmd
}

func runLogin(ctx context.Context, e *Env, opts loginOptions) error {
	// Check for environment variables (useful for CI/CD)
	if opts.email == "" {
		opts.email = os.Getenv("TOXITRACE_EMAIL")
	}
	if opts.password == "" {
		opts.password = os.Getenv("TOXITRACE_PASSWORD")
	}

	if opts.email == "" {
		return fmt.Errorf("email is required (use --email flag or TOXITRACE_EMAIL env var)")
	}

	portal, err := portalselect.ResolvePortal(opts.portal, e.Interactive, e.PromptPortal)
	if err != nil {
		return err
	}

	// Prompt for password if not provided via flag or env var
	if opts.password == "" {
		if !e.Interactive || e.ReadPassword == nil {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or TOXITRACE_PASSWORD env var)")
		}
		opts.password, err = e.ReadPassword("Password: ")
		if err != nil {
			return err
		}
	}

	store, _, err := e.openSession()
	if err != nil {
		return err
	}
	defer e.closeSession(store)

	fmt.Fprintf(e.Out, "Logging in to the %s portal...\n", portal.Title())

	if err := store.Login(ctx, opts.email, opts.password, portal); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	portalselect.Remember(portal)

	user := store.User()
	fmt.Fprintln(e.Out, "✓ Login successful!")
	fmt.Fprintf(e.Out, "  User: %s (%s)\n", displayName(user), user.Email)
	fmt.Fprintf(e.Out, "  Role: %s\n", user.Role)

	return nil
}

func displayName(u *models.User) string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}
