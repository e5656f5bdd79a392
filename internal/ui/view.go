package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	disabledStyle = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("241"))
	modalStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("81")).
			Padding(1, 2)
)

const splash = `
 _          _         _
| | ____ __| |_ _   _(_)
| |/ /\ V /| __| | | | |
|   <  \ / | |_| |_| | |
|_|\_\  \_/ \__|\__,_|_|
`

// View renders the current state. It is a pure reader; no state changes
// happen here.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	switch m.screen {
	case screenWelcome:
		b.WriteString(titleStyle.Render(splash))
		b.WriteString("\n" + dimStyle.Render("   azure key vault, in your terminal") + "\n")
		b.WriteString("\n" + dimStyle.Render("   press any key") + "\n")
		return b.String()

	case screenVaultSelection:
		b.WriteString(m.renderVaultSelection())

	case screenSecretList:
		b.WriteString(m.renderSecretList())
	}

	if m.modal != modalNone {
		b.WriteString("\n" + m.renderModal() + "\n")
	}
	b.WriteString("\n" + m.renderBanner())
	return b.String()
}

func (m Model) renderVaultSelection() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("vaults") + "\n\n")

	vaults := m.visibleVaults()
	if m.loading && len(vaults) == 0 {
		b.WriteString(m.spin.View() + " discovering vaults...\n")
	}
	for i, v := range vaults {
		line := fmt.Sprintf("%s  %s", v.Name, dimStyle.Render(v.URI))
		if i == m.vaultCursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(vaults) == 0 && !m.loading {
		b.WriteString(dimStyle.Render("  no vaults match") + "\n")
	}

	b.WriteString("\n" + m.renderSearch())
	b.WriteString(dimStyle.Render("j/k move · enter open · / search · r rediscover · q quit") + "\n")
	return b.String()
}

func (m Model) renderSecretList() string {
	var b strings.Builder
	title := "secrets"
	if m.selected != nil {
		title = m.selected.Name
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	secrets := m.visibleSecrets()
	if m.loading && len(secrets) == 0 {
		b.WriteString(m.spin.View() + " loading secrets...\n")
	}
	for i, s := range secrets {
		name := s.Name
		if !s.Enabled {
			name = disabledStyle.Render(name)
		}
		line := name
		if !s.Updated.IsZero() {
			line += "  " + dimStyle.Render(s.Updated.Format("2006-01-02 15:04"))
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(secrets) == 0 && !m.loading {
		b.WriteString(dimStyle.Render("  no secrets match") + "\n")
	}

	b.WriteString("\n" + m.renderSearch())
	b.WriteString(dimStyle.Render("enter copy · space view · a add · e edit · d delete · r refresh · v vaults · q quit") + "\n")
	return b.String()
}

func (m Model) renderSearch() string {
	if m.searching || m.searchInput.Value() != "" {
		return m.searchInput.View() + "\n"
	}
	return ""
}

func (m Model) renderModal() string {
	switch m.modal {
	case modalDetail:
		name := ""
		body := m.spin.View() + " fetching..."
		if m.detail != nil {
			name = m.detail.Name()
			if v, err := m.detail.String(); err == nil {
				body = v
			} else {
				body = errorStyle.Render(err.Error())
			}
		}
		return modalStyle.Render(titleStyle.Render(name) + "\n\n" + body + "\n\n" + dimStyle.Render("esc close"))

	case modalAdd:
		return modalStyle.Render(titleStyle.Render("add secret") + "\n\n" +
			m.nameInput.View() + "\n" + m.valueInput.View() + "\n\n" +
			dimStyle.Render("tab switch · enter save · esc cancel"))

	case modalEdit:
		return modalStyle.Render(titleStyle.Render("edit "+m.nameInput.Value()) + "\n\n" +
			m.valueInput.View() + "\n\n" +
			dimStyle.Render("enter save · esc cancel"))

	case modalConfirmDelete:
		return modalStyle.Render(titleStyle.Render("delete secret") + "\n\n" +
			fmt.Sprintf("soft-delete %q?", m.nameInput.Value()) + "\n\n" +
			dimStyle.Render("y confirm · n cancel"))
	}
	return ""
}

func (m Model) renderBanner() string {
	if m.banner.text == "" {
		return ""
	}
	if m.banner.isErr {
		return errorStyle.Render(m.banner.text) + "\n"
	}
	return statusStyle.Render(m.banner.text) + "\n"
}
