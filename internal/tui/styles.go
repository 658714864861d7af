package tui

import "github.com/charmbracelet/lipgloss"

// palette
const (
	accent  = lipgloss.Color("99")
	muted   = lipgloss.Color("240")
	faint   = lipgloss.Color("241")
	failed  = lipgloss.Color("196")
	applied = lipgloss.Color("82")
	pending = lipgloss.Color("214")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	subtitleStyle = lipgloss.NewStyle().Foreground(faint)

	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).Background(lipgloss.Color("236")).Padding(0, 2)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 2)

	errorStyle   = lipgloss.NewStyle().Foreground(failed)
	successStyle = lipgloss.NewStyle().Foreground(applied)
	// fields edited in the wizard but not yet applied
	changedStyle = lipgloss.NewStyle().Foreground(pending)

	// wide enough for settings field names like group_multi_currency
	labelStyle    = lipgloss.NewStyle().Bold(true).Width(40)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle      = lipgloss.NewStyle().Foreground(muted)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(muted)

	boxStyle     = framed(muted)
	hintBoxStyle = framed(accent)
)

func framed(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2)
}
