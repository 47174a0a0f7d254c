package navigation

import (
	"fmt"
	"io"
)

// commandHints maps routes to the CLI command that shows them
var commandHints = map[string]string{
	RouteHome:            "login",
	RouteLogin:           "login",
	RouteDoctorLogin:     "login --portal doctor",
	RouteEPALogin:        "login --portal epa",
	RouteDashboard:       "reports",
	RouteDoctorDashboard: "patients",
	RouteEPADashboard:    "alerts",
}

// CommandFor returns the CLI command for route, without the binary name
func CommandFor(route string) (string, bool) {
	cmd, ok := commandHints[route]
	return cmd, ok
}

// Terminal is the CLI Navigator. A terminal cannot change page, so it prints
// the command that leads to the route and remembers the route.
type Terminal struct {
	Out io.Writer
	// Binary is the executable name used in printed hints
	Binary string
	// Remember persists the last route. Optional.
	Remember func(route string) error
}

func (t *Terminal) Navigate(route string) {
	if t.Remember != nil {
		_ = t.Remember(route)
	}

	if t.Out == nil {
		return
	}
	if cmd, ok := CommandFor(route); ok {
		fmt.Fprintf(t.Out, "→ Next: %s %s\n", t.Binary, cmd)
	}
}
