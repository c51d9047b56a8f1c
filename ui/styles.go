package ui

import "github.com/charmbracelet/lipgloss"

var (
	normalFg    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#dddddd"}
	indigo      = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	subtleFg    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	red         = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	green       = lipgloss.Color("#04B575")
	yellowGreen = lipgloss.AdaptiveColor{Light: "#A6A600", Dark: "#ECFD65"}

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1F1F1")).
			Background(lipgloss.Color("#FF5F87")).
			Bold(true).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().Foreground(subtleFg)

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(indigo).
			Bold(true).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Foreground(statusBarNoteFg).Padding(0, 1)

	sentenceStyle        = lipgloss.NewStyle().Foreground(normalFg).Render
	currentSentenceStyle = lipgloss.NewStyle().Foreground(yellowGreen).Bold(true).Render
	nativeStyle          = lipgloss.NewStyle().Foreground(subtleFg).Italic(true).Render
	rowNumberStyle       = lipgloss.NewStyle().Foreground(subtleFg).Render
	cursorStyle          = lipgloss.NewStyle().Foreground(indigo).Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Padding(0, 2).
			Render

	practiceBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(indigo).
				Padding(0, 1)

	correctStyle = lipgloss.NewStyle().Foreground(green).Render
	wrongStyle   = lipgloss.NewStyle().Foreground(red).Render
	missingStyle = lipgloss.NewStyle().Foreground(red).Underline(true).Render
)
