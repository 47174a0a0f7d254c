package navigation

import "sync"

// Routes used by the session store and the route guards
const (
	RouteHome            = "/"
	RouteLogin           = "/login"
	RouteDoctorLogin     = "/doctor-login"
	RouteEPALogin        = "/epa-login"
	RouteDashboard       = "/dashboard"
	RouteDoctorDashboard = "/doctor-dashboard"
	RouteEPADashboard    = "/epa-dashboard"
)

// Navigator moves the client to a route
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to the Navigator interface
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Discard is a Navigator that ignores every route
var Discard Navigator = NavigatorFunc(func(string) {})

// History records every navigation. It is safe for concurrent use.
type History struct {
	mu     sync.Mutex
	routes []string
}

// NewHistory creates an empty navigation history
func NewHistory() *History {
	return &History{}
}

func (h *History) Navigate(route string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, route)
}

// Current returns the most recent route, or "" when nothing was navigated
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.routes) == 0 {
		return ""
	}
	return h.routes[len(h.routes)-1]
}

// Routes returns a copy of every recorded route in order
func (h *History) Routes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.routes))
	copy(out, h.routes)
	return out
}

// Len returns the number of recorded navigations
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.routes)
}
