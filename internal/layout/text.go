// internal/layout/text.go
package layout

import "strings"

// TextStyle controls one FlowText call.
type TextStyle struct {
	Style       string // "", "B" or "I"
	Size        float64
	Color       RGB
	X           float64
	MaxWidth    float64
	LineSpacing float64
	Center      bool
}

// WrapLines greedily packs words into lines no wider than maxWidth. A word
// wider than maxWidth on its own is emitted as a single line. Explicit line
// breaks are kept; blank input lines come back as empty strings.
func WrapLines(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, word := range words {
			if line == "" {
				line = word
				continue
			}
			candidate := line + " " + word
			if measure(candidate) > maxWidth {
				lines = append(lines, line)
				line = word
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return trimBlankEdges(lines)
}

func trimBlankEdges(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// FlowText draws wrapped text at the cursor, breaking pages line by line.
// Blank text draws the placeholder. It returns the number of lines drawn.
func FlowText(c *RenderContext, text string, st TextStyle) int {
	if st.MaxWidth <= 0 {
		st.MaxWidth = c.ContentWidth()
	}
	apply := func() {
		c.font(st.Style, st.Size)
		c.textColor(st.Color)
	}
	apply()

	lines := WrapLines(OrPlaceholder(text), st.MaxWidth, c.measure)
	step := st.Size + st.LineSpacing
	for _, line := range lines {
		if c.EnsureSpace(step) {
			apply()
		}
		x := st.X
		if st.Center {
			x = st.X + (st.MaxWidth-c.measure(line))/2
		}
		if line != "" {
			c.text(x, c.Y+st.Size, line)
		}
		c.Y += step
	}
	return len(lines)
}
