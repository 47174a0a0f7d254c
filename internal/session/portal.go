package session

import (
	"fmt"
	"strings"

	"github.com/toxitrace/toxitrace/internal/models"
	"github.com/toxitrace/toxitrace/internal/navigation"
)

// Portal is a role-specific login and dashboard flow
type Portal string

const (
	// PortalCitizen is the default flow. It performs no role check.
	PortalCitizen Portal = "citizen"
	PortalDoctor  Portal = "doctor"
	PortalEPA     Portal = "epa"
)

// Portals lists every portal in display order
var Portals = []Portal{PortalCitizen, PortalDoctor, PortalEPA}

// ParsePortal accepts a portal name; the empty string selects the citizen portal
func ParsePortal(s string) (Portal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "citizen", "user":
		return PortalCitizen, nil
	case "doctor", "health":
		return PortalDoctor, nil
	case "epa":
		return PortalEPA, nil
	default:
		return "", fmt.Errorf("invalid portal %q (valid options: citizen, doctor, epa)", s)
	}
}

// Title is the human-readable portal name
func (p Portal) Title() string {
	switch p {
	case PortalDoctor:
		return "Doctor"
	case PortalEPA:
		return "EPA"
	default:
		return "Citizen"
	}
}

// AllowedRoles returns the roles that may enter the portal, or nil when the
// portal performs no role check
func (p Portal) AllowedRoles() []models.Role {
	switch p {
	case PortalDoctor:
		return []models.Role{models.RoleHealthAdmin, models.RoleSuperAdmin}
	case PortalEPA:
		return []models.Role{models.RoleEPAAdmin, models.RoleSuperAdmin}
	default:
		return nil
	}
}

// LandingRoute is where a successful login into the portal navigates
func (p Portal) LandingRoute() string {
	switch p {
	case PortalDoctor:
		return navigation.RouteDoctorDashboard
	case PortalEPA:
		return navigation.RouteEPADashboard
	default:
		return navigation.RouteDashboard
	}
}

// LoginRoute is the portal's login page, used as the guard redirect target
func (p Portal) LoginRoute() string {
	switch p {
	case PortalDoctor:
		return navigation.RouteDoctorLogin
	case PortalEPA:
		return navigation.RouteEPALogin
	default:
		return navigation.RouteLogin
	}
}

// Authorize checks that role may enter the portal
func (p Portal) Authorize(role models.Role) error {
	allowed := p.AllowedRoles()
	if allowed == nil || role.In(allowed) {
		return nil
	}

	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	return &AuthError{
		Message: fmt.Sprintf("Access denied: %s dashboard requires %s role", p.Title(), strings.Join(names, " or ")),
	}
}
