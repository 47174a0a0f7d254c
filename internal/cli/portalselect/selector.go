package portalselect

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/toxitrace/toxitrace/internal/cli/userconfig"
	"github.com/toxitrace/toxitrace/internal/session"
)

// Prompter asks the user to pick a portal
type Prompter func(defaultPortal session.Portal) (session.Portal, error)

// ResolvePortal determines which portal to log in to based on the following priority:
// 1. If the portal flag is provided, use that portal
// 2. If the terminal is interactive, prompt with the last used portal preselected
// 3. Otherwise use the citizen portal
func ResolvePortal(flag string, interactive bool, prompt Prompter) (session.Portal, error) {
	// Priority 1: Use portal flag if provided
	if flag != "" {
		return session.ParsePortal(flag)
	}

	// Priority 2: Prompt user to select a portal
	if interactive && prompt != nil {
		last := session.PortalCitizen
		if name, err := userconfig.GetLastPortal(); err == nil && name != "" {
			if p, err := session.ParsePortal(name); err == nil {
				last = p
			}
		}
		return prompt(last)
	}

	// Priority 3: Non-interactive default
	return session.PortalCitizen, nil
}

// Remember saves the portal as the last used one
func Remember(p session.Portal) {
	if err := userconfig.SetLastPortal(string(p)); err != nil {
		// Don't fail if we can't save, just continue
		fmt.Printf("Warning: failed to save selected portal: %v\n", err)
	}
}

// PromptPortalSelection shows an interactive prompt for the user to select a portal
func PromptPortalSelection(defaultPortal session.Portal) (session.Portal, error) {
	type portalOption struct {
		Label  string
		Portal session.Portal
	}

	options := make([]portalOption, len(session.Portals))
	cursor := 0
	for i, p := range session.Portals {
		label := p.Title()
		if p.AllowedRoles() != nil {
			label = fmt.Sprintf("%s (%s)", label, joinRoles(p))
		}
		options[i] = portalOption{Label: label, Portal: p}
		if p == defaultPortal {
			cursor = i
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a portal",
		Items:     options,
		Templates: templates,
		Size:      len(options),
		CursorPos: cursor,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("portal selection cancelled: %w", err)
	}

	return options[index].Portal, nil
}

func joinRoles(p session.Portal) string {
	roles := p.AllowedRoles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
