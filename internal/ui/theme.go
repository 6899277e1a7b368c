package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/xnatrack/internal/app"
)

// Theme defines colors used when rendering results.
type Theme struct {
	Name string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// Status colors
	StatusColors map[app.Status]string
}

// Styles returns Lipgloss styles for this theme bound to renderer.
func (t Theme) Styles(r *lipgloss.Renderer) Styles {
	return Styles{
		Text:        r.NewStyle().Foreground(lipgloss.Color(t.Text)),
		MutedText:   r.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		FaintText:   r.NewStyle().Foreground(lipgloss.Color(t.Faint)),
		AccentText:  r.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		SuccessText: r.NewStyle().Foreground(lipgloss.Color(t.Success)).Bold(true),
		WarningText: r.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		DangerText:  r.NewStyle().Foreground(lipgloss.Color(t.Danger)).Bold(true),
		InfoText:    r.NewStyle().Foreground(lipgloss.Color(t.Info)),

		renderer:     r,
		statusColors: t.StatusColors,
		muted:        t.Muted,
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	renderer     *lipgloss.Renderer
	statusColors map[app.Status]string
	muted        string
}

// StatusStyle returns a style for the given status.
func (s Styles) StatusStyle(status app.Status) lipgloss.Style {
	color := s.statusColors[status]
	if color == "" {
		color = s.muted
	}
	return s.renderer.NewStyle().Foreground(lipgloss.Color(color)).Bold(status.Failed())
}

var themes = map[string]Theme{
	"Nightfox": nightfoxTheme(),
	"Kanagawa": kanagawaTheme(),
	"Slate":    slateTheme(),
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return nightfoxTheme()
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func nightfoxTheme() Theme {
	// Nightfox palette: https://github.com/EdenEast/nightfox.nvim
	return Theme{
		Name: "Nightfox",

		Text:    "#cdcecf", // fg1
		Muted:   "#738091", // comment
		Faint:   "#71839b", // fg3
		Accent:  "#719cd6", // blue
		Success: "#81b29a", // green
		Warning: "#dbc074", // yellow
		Danger:  "#c94f6d", // red
		Info:    "#63cdcf", // cyan

		StatusColors: map[app.Status]string{
			app.StatusOK:         "#81b29a", // green
			app.StatusNotNeeded:  "#738091", // comment
			app.StatusImpossible: "#dbc074", // yellow
			app.StatusError:      "#c94f6d", // red
		},
	}
}

func kanagawaTheme() Theme {
	// Kanagawa palette: https://github.com/rebelot/kanagawa.nvim
	return Theme{
		Name: "Kanagawa",

		Text:    "#DCD7BA", // fujiWhite
		Muted:   "#C8C093", // oldWhite
		Faint:   "#727169", // fujiGray
		Accent:  "#7E9CD8", // crystalBlue
		Success: "#98BB6C", // springGreen
		Warning: "#E6C384", // carpYellow
		Danger:  "#E46876", // waveRed
		Info:    "#7FB4CA", // springBlue

		StatusColors: map[app.Status]string{
			app.StatusOK:         "#98BB6C", // springGreen
			app.StatusNotNeeded:  "#727169", // fujiGray
			app.StatusImpossible: "#E6C384", // carpYellow
			app.StatusError:      "#E46876", // waveRed
		},
	}
}

func slateTheme() Theme {
	// Tailwind CSS Slate/Sky palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name: "Slate",

		Text:    "#f1f5f9", // slate-100
		Muted:   "#94a3b8", // slate-400
		Faint:   "#64748b", // slate-500
		Accent:  "#38bdf8", // sky-400
		Success: "#22c55e", // green-500
		Warning: "#f59e0b", // amber-500
		Danger:  "#ef4444", // red-500
		Info:    "#06b6d4", // cyan-500

		StatusColors: map[app.Status]string{
			app.StatusOK:         "#16a34a", // green-600
			app.StatusNotNeeded:  "#64748b", // slate-500
			app.StatusImpossible: "#f59e0b", // amber-500
			app.StatusError:      "#dc2626", // red-600
		},
	}
}
