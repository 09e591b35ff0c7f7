package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4f46e5"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f766e"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	statusStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#a16207"))

	chipOn  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	chipOff = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("241"))

	composerBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4f46e5"))
	lockedBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241"))
)

// personaStyle colors a persona's name with its accent color
func personaStyle(id string) lipgloss.Style {
	p, ok := persona.Get(id)
	if !ok {
		return lipgloss.NewStyle().Bold(true)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Color))
}

func chip(id string, on bool) string {
	label := persona.Name(id)
	if on {
		return chipOn.Background(lipgloss.Color(persona.MustGet(id).Color)).
			Foreground(lipgloss.Color("#ffffff")).Render(label)
	}
	return chipOff.Render(label)
}
