package commands

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toxitrace/toxitrace/internal/cli/userconfig"
	"github.com/toxitrace/toxitrace/internal/navigation"
)

// NewDashCmd creates the dash command
func NewDashCmd(e *Env) *cobra.Command {
	var portalURL string

	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the web portal in browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDash(e, portalURL)
		},
	}

	cmd.Flags().StringVar(&portalURL, "url", "", "Portal URL (defaults to PORTAL_ADDR on localhost)")

	return cmd
}

func runDash(e *Env, portalURL string) error {
	if portalURL == "" {
		portalURL = localPortalURL(e.Config.Portal.Addr)
	}

	// Reopen where the last login or redirect left off
	route, err := userconfig.GetLastRoute()
	if err != nil || route == "" {
		route = navigation.RouteHome
	}
	dashboardURL := strings.TrimRight(portalURL, "/") + route

	fmt.Fprintf(e.Out, "Opening portal...\n")
	fmt.Fprintf(e.Out, "URL: %s\n", dashboardURL)

	open := e.OpenBrowser
	if open == nil {
		open = openBrowser
	}
	if err := open(dashboardURL); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, dashboardURL)
	}

	return nil
}

// localPortalURL turns a listen address into a browsable URL
func localPortalURL(addr string) string {
	host := addr
	if strings.HasPrefix(addr, ":") {
		host = "localhost" + addr
	} else if strings.HasPrefix(addr, "0.0.0.0:") {
		host = "localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return "http://" + host
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
