package ui

import "github.com/charmbracelet/lipgloss"

const (
	spotifyGreen = "#1DB954"
	youtubeRed   = "#FF0033"
	amber        = "#FFA500"
	gray         = "#626262"
)

var styles = newPalette(spotifyGreen, youtubeRed)

// palette holds the named styles every view renders with.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	box   lipgloss.Style
}

// newPalette derives the styles from the source (accent) and destination (alert) brand colors.
func newPalette(accent, alert string) palette {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }

	return palette{
		title: fg(accent).Bold(true).MarginBottom(1),
		ok:    fg(accent).Bold(true),
		err:   fg(alert).Bold(true),
		warn:  fg(amber),
		help:  fg(gray).Italic(true),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(gray)).
			Padding(0, 1),
	}
}

// matchStyle colors a matched/total count: accent when complete, amber when partial, alert
// when nothing matched.
func (p palette) matchStyle(matched, total int) lipgloss.Style {
	switch {
	case total > 0 && matched == total:
		return p.ok
	case matched == 0 && total > 0:
		return p.err
	default:
		return p.warn
	}
}
