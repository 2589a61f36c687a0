// internal/models/options.go
package models

import "strings"

const (
	ThemeClassic        = "classique"
	ThemeModern         = "moderne"
	ThemeNature         = "nature"
	ThemeArchitect      = "architecte"
	ThemeAdministrative = "administratif"

	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"

	VariantMinimal = "minimal"
	VariantFull    = "full"
)

// RenderOptions selects the visual template for one rendering.
type RenderOptions struct {
	Theme       string `json:"theme,omitempty"`
	Orientation string `json:"orientation,omitempty"`
	Variant     string `json:"variant,omitempty"`
	MapMode     string `json:"mapMode,omitempty"`
}

// Normalize lower-cases the options and replaces unknown values with the
// portrait/minimal/classique defaults. MapMode is left for the dossier to
// resolve.
func (o RenderOptions) Normalize() RenderOptions {
	out := RenderOptions{
		Theme:       strings.ToLower(strings.TrimSpace(o.Theme)),
		Orientation: strings.ToLower(strings.TrimSpace(o.Orientation)),
		Variant:     strings.ToLower(strings.TrimSpace(o.Variant)),
		MapMode:     strings.ToLower(strings.TrimSpace(o.MapMode)),
	}
	switch out.Theme {
	case ThemeClassic, ThemeModern, ThemeNature, ThemeArchitect, ThemeAdministrative:
	default:
		out.Theme = ThemeClassic
	}
	if out.Orientation != OrientationLandscape {
		out.Orientation = OrientationPortrait
	}
	if out.Variant != VariantFull {
		out.Variant = VariantMinimal
	}
	return out
}
