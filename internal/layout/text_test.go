package layout

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier-workers/internal/models"
)

// fixed-pitch measure: 5pt per rune
func monoMeasure(s string) float64 {
	return float64(len([]rune(s))) * 5
}

func TestWrapLines(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width float64
		want  []string
	}{
		{"empty", "", 100, nil},
		{"single line", "un deux trois", 100, []string{"un deux trois"}},
		{"wraps at width", "aaaa bbbb cccc", 45, []string{"aaaa bbbb", "cccc"}},
		{"exact fit", "aaaa bbbb", 45, []string{"aaaa bbbb"}},
		{"long word kept whole", "x supercalifragilistic y", 30, []string{"x", "supercalifragilistic", "y"}},
		{"collapses spaces", "a   b\t c", 100, []string{"a b c"}},
		{"keeps line breaks", "ligne 1\n\nligne 2", 100, []string{"ligne 1", "", "ligne 2"}},
		{"trims blank edges", "\n\ntexte\n", 100, []string{"texte"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapLines(tt.text, tt.width, monoMeasure))
		})
	}
}

func TestWrapLines_NeverExceedsWidthExceptSingleWord(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"a", "mur", "façade", "menuiseries", "ravalement", "enduit", "x", "anticonstitutionnellement"}

	for i := 0; i < 200; i++ {
		var parts []string
		for n := rng.Intn(40); n >= 0; n-- {
			parts = append(parts, words[rng.Intn(len(words))])
		}
		text := strings.Join(parts, " ")
		width := float64(20 + rng.Intn(200))

		lines := WrapLines(text, width, monoMeasure)
		require.Equal(t, strings.Fields(text), strings.Fields(strings.Join(lines, " ")), "no word dropped")
		for _, line := range lines {
			if monoMeasure(line) > width {
				assert.NotContains(t, line, " ", "only a lone word may overflow: %q (w=%v)", line, width)
			}
		}
	}
}

func TestFlowText_BlankRendersPlaceholder(t *testing.T) {
	c := newTestContext(t, models.OrientationPortrait)
	c.NewPage()
	y := c.Y

	n := FlowText(c, "   ", TextStyle{Size: 10, X: c.Geo.Margin, LineSpacing: 5})

	assert.Equal(t, 1, n)
	assert.Equal(t, y+15, c.Y)
	assert.True(t, bytes.Contains(renderOutput(t, c), []byte("(\x97) Tj")))
}

func TestFlowText_BreaksPagesMidParagraph(t *testing.T) {
	c := newTestContext(t, models.OrientationPortrait)
	c.NewPage()
	c.Y = c.Bottom() - 30

	long := strings.Repeat("texte de la notice descriptive ", 60)
	FlowText(c, long, TextStyle{Size: 10, X: c.Geo.Margin, LineSpacing: 5})

	assert.Equal(t, 2, c.PageCount())
	assert.LessOrEqual(t, c.Y, c.Bottom())
}

func TestFlowText_Centered(t *testing.T) {
	c := newTestContext(t, models.OrientationPortrait)
	c.NewPage()
	FlowText(c, "Titre", TextStyle{Style: "B", Size: 22, X: c.Geo.Margin, MaxWidth: c.ContentWidth(), Center: true})
	assert.True(t, bytes.Contains(renderOutput(t, c), []byte("(Titre) Tj")))
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{850, "850"},
		{95.5, "95,5"},
		{5.25, "5,25"},
		{15000, "15\u00a0000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in))
	}
	assert.Equal(t, "95,5 m²", FormatArea(95.5))
	assert.Equal(t, "5,5 m", FormatLength(5.5))
	assert.Equal(t, "Oui", YesNo(true))
	assert.Equal(t, Placeholder, OrPlaceholder(" "))
	assert.Equal(t, "x", OrPlaceholder("x"))
}
