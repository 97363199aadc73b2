package console

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F5F5F5")).
			Background(lipgloss.Color("#2E7D32")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#81C784")).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Width(22).
			Foreground(lipgloss.Color("#9E9E9E"))

	focusedLabelStyle = labelStyle.
				Foreground(lipgloss.Color("#FFD54F")).
				Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#E0E0E0")).
			Background(lipgloss.Color("#424242"))

	focusedButtonStyle = buttonStyle.
				Foreground(lipgloss.Color("#212121")).
				Background(lipgloss.Color("#FFD54F"))

	optionStyle         = lipgloss.NewStyle().PaddingLeft(24).Foreground(lipgloss.Color("#BDBDBD"))
	selectedOptionStyle = optionStyle.Foreground(lipgloss.Color("#FFD54F")).Bold(true)

	lineStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedLineStyle = lineStyle.Foreground(lipgloss.Color("#FFD54F"))

	statusStyle = lipgloss.NewStyle().MarginTop(1).Foreground(lipgloss.Color("#90CAF9"))
	errorStyle  = lipgloss.NewStyle().MarginTop(1).Foreground(lipgloss.Color("#EF5350"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#616161"))
)
