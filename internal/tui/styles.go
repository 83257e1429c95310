package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	autoCutStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	manualCutStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	selectedCutStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	draggingCutStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	playheadStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	segmentStyles = []lipgloss.Style{
		lipgloss.NewStyle().Background(lipgloss.Color("237")).Foreground(lipgloss.Color("252")),
		lipgloss.NewStyle().Background(lipgloss.Color("239")).Foreground(lipgloss.Color("252")),
	}
	taggedSegmentStyle   = lipgloss.NewStyle().Background(lipgloss.Color("22")).Foreground(lipgloss.Color("15"))
	selectedSegmentStyle = lipgloss.NewStyle().Background(lipgloss.Color("25")).Foreground(lipgloss.Color("15")).Bold(true)

	formLabelStyle = lipgloss.NewStyle().Width(15).Foreground(lipgloss.Color("7"))
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)
