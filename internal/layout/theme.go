// internal/layout/theme.go
package layout

import "dossier-workers/internal/models"

// RGB is an 8-bit colour triple.
type RGB struct {
	R, G, B int
}

var (
	white = RGB{255, 255, 255}
	red   = RGB{220, 0, 0}
	grey  = RGB{140, 140, 140}
)

// Theme is the colour table used by every composer.
type Theme struct {
	Name      string
	Primary   RGB
	Secondary RGB
	TitleText RGB
	BodyText  RGB
	Border    RGB
	// Tricolor draws the blue/white/red band in the running header.
	Tricolor bool
}

var themes = map[string]Theme{
	models.ThemeClassic: {
		Name:      models.ThemeClassic,
		Primary:   RGB{0, 0, 145},
		Secondary: RGB{225, 0, 15},
		TitleText: RGB{30, 30, 30},
		BodyText:  RGB{58, 58, 58},
		Border:    RGB{204, 204, 204},
		Tricolor:  true,
	},
	models.ThemeModern: {
		Name:      models.ThemeModern,
		Primary:   RGB{34, 40, 49},
		Secondary: RGB{0, 173, 181},
		TitleText: RGB{34, 40, 49},
		BodyText:  RGB{57, 62, 70},
		Border:    RGB{238, 238, 238},
	},
	models.ThemeNature: {
		Name:      models.ThemeNature,
		Primary:   RGB{45, 106, 79},
		Secondary: RGB{216, 243, 220},
		TitleText: RGB{27, 67, 50},
		BodyText:  RGB{64, 61, 57},
		Border:    RGB{212, 212, 212},
	},
	models.ThemeArchitect: {
		Name:      models.ThemeArchitect,
		Primary:   RGB{20, 33, 61},
		Secondary: RGB{252, 163, 17},
		TitleText: RGB{0, 0, 0},
		BodyText:  RGB{51, 51, 51},
		Border:    RGB{229, 229, 229},
	},
	models.ThemeAdministrative: {
		Name:      models.ThemeAdministrative,
		Primary:   RGB{0, 0, 0},
		Secondary: RGB{0, 0, 0},
		TitleText: RGB{0, 0, 0},
		BodyText:  RGB{0, 0, 0},
		Border:    RGB{0, 0, 0},
	},
}

// ThemeFor returns the named theme, falling back to classique.
func ThemeFor(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[models.ThemeClassic]
}
