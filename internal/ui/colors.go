package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/trackx/internal/tasks"
)

var styles = newPalette(paletteColors{
	title: "#7D56F4",
	ok:    "#04B575",
	err:   "#FF5F56",
	warn:  "#FFA500",
	muted: "#626262",
})

type paletteColors struct {
	title, ok, err, warn, muted string
}

// palette holds the named styles used by the three views.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style

	phases map[tasks.Phase]lipgloss.Style
}

func newPalette(c paletteColors) *palette {
	return &palette{
		title: bold(c.title).MarginBottom(1),
		ok:    bold(c.ok),
		err:   bold(c.err),
		warn:  fg(c.warn),
		help:  fg(c.muted).Italic(true),
		phases: map[tasks.Phase]lipgloss.Style{
			tasks.Suggest:  fg(c.title),
			tasks.Search:   fg(c.warn),
			tasks.Lookup:   fg(c.warn),
			tasks.Complete: bold(c.ok),
		},
	}
}

// phase renders s in the color of the pipeline phase it describes.
func (p *palette) phase(ph tasks.Phase, s string) string {
	if st, ok := p.phases[ph]; ok {
		return st.Render(s)
	}
	return s
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
