package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/navigation"
	"github.com/toxitrace/toxitrace/internal/session"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(e *Env) *cobra.Command {
	var form models.RegisterForm

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a citizen account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), e, form)
		},
	}

	cmd.Flags().StringVar(&form.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&form.Username, "username", "", "Username")
	cmd.Flags().StringVar(&form.FullName, "full-name", "", "Full name")
	cmd.Flags().StringVar(&form.PhoneNumber, "phone", "", "Phone number (optional)")
	cmd.Flags().StringVar(&form.Name, "name", "", "Display name (optional)")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password (or set TOXITRACE_PASSWORD, will prompt if not provided)")

	return cmd
}

func runRegister(ctx context.Context, e *Env, form models.RegisterForm) error {
	if form.Password == "" {
		form.Password = os.Getenv("TOXITRACE_PASSWORD")
	}
	if form.Password == "" && e.Interactive && e.ReadPassword != nil {
		password, err := e.ReadPassword("Choose a password: ")
		if err != nil {
			return err
		}
		form.Password = password
	}

	if err := form.Validate(); err != nil {
		return err
	}

	store, _, err := e.openSession()
	if err != nil {
		return err
	}
	defer e.closeSession(store)

	fmt.Fprintf(e.Out, "Creating account for %s...\n", form.Email)

	opts := session.RegisterOptions{LandingRoute: navigation.RouteDashboard}
	if err := store.Register(ctx, form, opts); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	user := store.User()
	fmt.Fprintln(e.Out, "✓ Account created!")
	fmt.Fprintf(e.Out, "  User: %s (%s)\n", displayName(user), user.Email)

	return nil
}
