package navigation

import (
	"sync"
	"testing"
)

func TestHistory_RecordsInOrder(t *testing.T) {
	h := NewHistory()
	if h.Current() != "" {
		t.Fatalf("expected empty current route, got %q", h.Current())
	}

	h.Navigate(RouteLogin)
	h.Navigate(RouteDashboard)

	if h.Current() != RouteDashboard {
		t.Errorf("current = %q, want %q", h.Current(), RouteDashboard)
	}

	routes := h.Routes()
	if len(routes) != 2 || routes[0] != RouteLogin || routes[1] != RouteDashboard {
		t.Errorf("routes = %v", routes)
	}

	// Routes returns a copy
	routes[0] = "/mutated"
	if h.Routes()[0] != RouteLogin {
		t.Error("Routes should return a copy")
	}
}

func TestHistory_ConcurrentNavigate(t *testing.T) {
	h := NewHistory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Navigate(RouteHome)
		}()
	}
	wg.Wait()

	if h.Len() != 50 {
		t.Errorf("len = %d, want 50", h.Len())
	}
}

func TestNavigatorFunc(t *testing.T) {
	var got string
	nav := NavigatorFunc(func(route string) { got = route })
	nav.Navigate(RouteEPADashboard)
	if got != RouteEPADashboard {
		t.Errorf("got %q, want %q", got, RouteEPADashboard)
	}

	// Discard must not panic
	Discard.Navigate(RouteHome)
}
