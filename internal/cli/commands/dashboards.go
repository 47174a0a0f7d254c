package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/toxitrace/toxitrace/internal/apiclient"
	"github.com/toxitrace/toxitrace/internal/guard"
	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/session"
)

// ErrAccessDenied is returned when the signed-in role may not run a command
var ErrAccessDenied = errors.New("access denied")

// Guards for the dashboard commands
var (
	reportsGuard  = guard.Config{}
	patientsGuard = guard.Config{
		AllowedRoles: session.PortalDoctor.AllowedRoles(),
		RedirectPath: session.PortalDoctor.LoginRoute(),
	}
	alertsGuard = guard.Config{
		AllowedRoles: session.PortalEPA.AllowedRoles(),
		RedirectPath: session.PortalEPA.LoginRoute(),
	}
)

// guarded opens the session, mounts a guard and runs fn only when the guard
// authorizes the signed-in role
func guarded(ctx context.Context, e *Env, cfg guard.Config, fn func(ctx context.Context, client *apiclient.Client) error) error {
	store, client, err := e.openSession()
	if err != nil {
		return err
	}
	defer e.closeSession(store)

	g := guard.Mount(store, cfg, e.navigator(), guard.WithLogger(e.Logger))
	defer g.Unmount()

	var runErr error
	d := g.Render(nil, func() {
		runErr = fn(ctx, client)
	})

	if d.Allowed() {
		return runErr
	}

	switch d.State {
	case guard.Unauthenticated:
		return ErrNotLoggedIn
	case guard.Forbidden:
		return fmt.Errorf("%w: requires %s role (signed in as %s)",
			ErrAccessDenied, joinRoles(g.Config().AllowedRoles), store.Snapshot().Role())
	default:
		return errors.New("session is still loading")
	}
}

func joinRoles(roles []models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, " or ")
}

// NewReportsCmd creates the reports command
func NewReportsCmd(e *Env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List your symptom reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return guarded(cmd.Context(), e, reportsGuard, func(ctx context.Context, client *apiclient.Client) error {
				reports, err := client.ListUserReports(ctx)
				if err != nil {
					return err
				}
				return printReports(e, output, reports)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}

func printReports(e *Env, output string, reports []models.Report) error {
	if output != outputText {
		return writeStructured(e.Out, output, reports)
	}

	if len(reports) == 0 {
		fmt.Fprintln(e.Out, "No reports found.")
		return nil
	}

	w := tabwriter.NewWriter(e.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTOXICITY\tLOCATION\tCREATED AT\tINPUT")
	fmt.Fprintln(w, "──\t──────\t────────\t────────\t──────────\t─────")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			orDash(r.Status),
			orDash(r.ToxicityLevel),
			orDash(r.Location),
			formatTimestamp(r.CreatedAt),
			truncate(r.OriginalInput, 40),
		)
	}
	return w.Flush()
}

// NewPatientsCmd creates the patients command
func NewPatientsCmd(e *Env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List patients grouped from all reports (doctor portal)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return guarded(cmd.Context(), e, patientsGuard, func(ctx context.Context, client *apiclient.Client) error {
				patients, err := client.PatientsFromReports(ctx)
				if err != nil {
					return err
				}
				return printPatients(e, output, patients)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}

func printPatients(e *Env, output string, patients []models.PatientInfo) error {
	if output != outputText {
		return writeStructured(e.Out, output, patients)
	}

	if len(patients) == 0 {
		fmt.Fprintln(e.Out, "No patients found.")
		return nil
	}

	w := tabwriter.NewWriter(e.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATIENT\tREPORTS\tLATEST REPORT\tLATEST INPUT")
	fmt.Fprintln(w, "───────\t───────\t─────────────\t────────────")
	for _, p := range patients {
		latest := ""
		if len(p.RecentReports) > 0 {
			latest = p.RecentReports[0].OriginalInput
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			p.UserID,
			p.TotalReports,
			formatTimestamp(p.LatestReportDate),
			truncate(latest, 40),
		)
	}
	return w.Flush()
}

// NewAlertsCmd creates the alerts command
func NewAlertsCmd(e *Env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List active environmental alerts (EPA portal)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return guarded(cmd.Context(), e, alertsGuard, func(ctx context.Context, client *apiclient.Client) error {
				alerts, err := client.ListActiveAlerts(ctx)
				if err != nil {
					return err
				}
				return printAlerts(e, output, alerts)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	return cmd
}

func printAlerts(e *Env, output string, alerts []models.Alert) error {
	if output != outputText {
		return writeStructured(e.Out, output, alerts)
	}

	if len(alerts) == 0 {
		fmt.Fprintln(e.Out, "No active alerts.")
		return nil
	}

	w := tabwriter.NewWriter(e.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tTYPE\tLOCATION\tTITLE")
	fmt.Fprintln(w, "──\t────────\t────\t────────\t─────")
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			orDash(a.Severity),
			orDash(a.AlertType),
			orDash(a.AffectedLocation),
			truncate(a.Title, 40),
		)
	}
	return w.Flush()
}

func formatTimestamp(ts models.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}
