// internal/layout/format.go
package layout

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is drawn wherever a value is missing.
const Placeholder = "—"

var frPrinter = message.NewPrinter(language.French)

// the narrow no-break space CLDR uses for French grouping has no cp1252 glyph
var spaceNormalizer = strings.NewReplacer("\u202f", "\u00a0")

// FormatNumber renders v with French separators and at most two decimals.
func FormatNumber(v float64) string {
	return spaceNormalizer.Replace(frPrinter.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(2))))
}

// FormatArea renders a surface in square metres.
func FormatArea(v float64) string {
	return FormatNumber(v) + " m²"
}

// FormatLength renders a height or distance in metres.
func FormatLength(v float64) string {
	return FormatNumber(v) + " m"
}

// YesNo renders a flag in French.
func YesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}

// OrPlaceholder returns s, or the em-dash when s is blank.
func OrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}
