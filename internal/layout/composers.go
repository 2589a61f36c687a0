// internal/layout/composers.go
package layout

const (
	sectionMinSpace   = 100.0
	sectionBarHeight  = 25.0
	fieldMinSpace     = 25.0
	fieldLabelWidth   = 150.0
	paragraphMinSpace = 40.0
)

// SectionHeader draws a full-width bar in the theme's primary colour with a
// bold white title. It starts a new page when fewer than 100pt remain.
func SectionHeader(c *RenderContext, title string) {
	c.EnsureSpace(sectionMinSpace)
	c.Y += 5
	c.fill(c.Theme.Primary)
	c.pdf.Rect(c.Geo.Margin, c.Y, c.ContentWidth(), sectionBarHeight, "F")
	c.font("B", 14)
	c.textColor(white)
	c.text(c.Geo.Margin+10, c.Y+18, title)
	c.Y += sectionBarHeight + 15
}

// Field draws a label in a fixed column and the wrapped value beside it.
func Field(c *RenderContext, label, value string) {
	c.EnsureSpace(fieldMinSpace)
	c.font("", 10)
	c.textColor(c.Theme.BodyText)
	c.text(c.Geo.Margin, c.Y+10, label)
	FlowText(c, value, TextStyle{
		Style:       "B",
		Size:        10,
		Color:       c.Theme.TitleText,
		X:           c.Geo.Margin + fieldLabelWidth,
		MaxWidth:    c.ContentWidth() - fieldLabelWidth,
		LineSpacing: 5,
	})
	c.Y += 10
}

// SubHeading draws a bold title line inside a section.
func SubHeading(c *RenderContext, title string) {
	c.EnsureSpace(paragraphMinSpace)
	c.font("B", 12)
	c.textColor(c.Theme.TitleText)
	c.text(c.Geo.Margin, c.Y+12, title)
	c.Y += 20
}

// Paragraph draws a bold title and a body that may flow across pages.
func Paragraph(c *RenderContext, title, body string) {
	c.EnsureSpace(paragraphMinSpace)
	c.font("B", 11)
	c.textColor(c.Theme.TitleText)
	c.text(c.Geo.Margin, c.Y+11, title)
	c.Y += 15
	FlowText(c, body, TextStyle{
		Size:        10,
		Color:       c.Theme.BodyText,
		X:           c.Geo.Margin,
		MaxWidth:    c.ContentWidth(),
		LineSpacing: 5,
	})
	c.Y += 10
}

// PlaceholderBox draws a dashed frame standing in for a paper attachment,
// with a centred title and instruction.
func PlaceholderBox(c *RenderContext, title, instruction string, height float64) {
	if limit := c.Bottom() - headerBottom - 10; height > limit {
		height = limit
	}
	c.EnsureSpace(height + 10)
	top := c.Y

	c.stroke(c.Theme.Border)
	c.pdf.SetLineWidth(1.5)
	c.pdf.SetDashPattern([]float64{6, 4}, 0)
	c.pdf.Rect(c.Geo.Margin, top, c.ContentWidth(), height, "D")
	c.pdf.SetDashPattern([]float64{}, 0)
	c.pdf.SetLineWidth(1)

	innerW := c.ContentWidth() - 40
	c.font("", 10)
	lines := WrapLines(OrPlaceholder(instruction), innerW, c.measure)
	blockH := 20 + float64(len(lines))*14
	c.Y = top + (height-blockH)/2

	FlowText(c, title, TextStyle{Style: "B", Size: 12, Color: c.Theme.TitleText, X: c.Geo.Margin + 20, MaxWidth: innerW, LineSpacing: 8, Center: true})
	FlowText(c, instruction, TextStyle{Size: 10, Color: grey, X: c.Geo.Margin + 20, MaxWidth: innerW, LineSpacing: 4, Center: true})

	c.Y = top + height + 10
}
