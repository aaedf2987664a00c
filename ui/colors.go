package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Status colors
	StatusOK       = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	StatusRedirect = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	StatusClient   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // purple
	StatusServer   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	StatusNeutral  = lipgloss.NewStyle().Foreground(lipgloss.Color("7")) // grey

	// UI elements
	HeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// Banner
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
)

var plain bool

// SetPlain turns styling off for every renderer in this package.
func SetPlain(on bool) {
	plain = on
}

func paint(s lipgloss.Style, text string) string {
	if plain {
		return text
	}
	return s.Render(text)
}

func StatusStyle(status int) lipgloss.Style {
	switch {
	case status >= 200 && status < 300:
		return StatusOK
	case status >= 300 && status < 400:
		return StatusRedirect
	case status >= 400 && status < 500:
		return StatusClient
	case status >= 500:
		return StatusServer
	default:
		return StatusNeutral
	}
}
