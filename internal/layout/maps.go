// internal/layout/maps.go
package layout

import (
	"math"
	"regexp"
	"strings"

	"dossier-workers/internal/models"
)

// Quadrant is one cell of the 2×2 map composition. Data carries fetched map
// bytes; Ref is used for photographs.
type Quadrant struct {
	Caption string
	Data    []byte
	Ref     models.ImageRef
	IsMap   bool
}

func (q Quadrant) empty() bool {
	return len(q.Data) == 0 && q.Ref.Empty()
}

var widePlanCaption = regexp.MustCompile(`(?i)^vue (large|rapprochée)`)

const (
	quadrantPadding = 6.0
	captionHeight   = 14.0
	overlayAlpha    = 0.75
)

func (c *RenderContext) resolveQuadrant(q Quadrant) (*resolvedImage, error) {
	if len(q.Data) > 0 {
		return c.images.ResolveBytes(q.Caption, q.Data)
	}
	return c.images.Resolve(q.Ref)
}

// DrawMapQuadrants lays four images into one bordered 2×2 box of height
// boxH. Map quadrants get a north arrow and a centre crosshair; captions
// matching the wide-plan pattern also get the address box.
func DrawMapQuadrants(c *RenderContext, quads [4]Quadrant, address string, boxH float64) {
	if limit := c.Bottom() - headerBottom - 10; boxH > limit {
		boxH = limit
	}
	c.EnsureSpace(boxH + 10)
	top := c.Y
	w := c.ContentWidth()
	cellW, cellH := w/2, boxH/2

	c.stroke(c.Theme.Border)
	c.pdf.SetLineWidth(1)
	c.pdf.Rect(c.Geo.Margin, top, w, boxH, "D")
	c.pdf.Line(c.Geo.Margin+cellW, top, c.Geo.Margin+cellW, top+boxH)
	c.pdf.Line(c.Geo.Margin, top+cellH, c.Geo.Margin+w, top+cellH)

	for i, q := range quads {
		cell := Rect{
			X: c.Geo.Margin + float64(i%2)*cellW + quadrantPadding,
			Y: top + float64(i/2)*cellH + quadrantPadding,
			W: cellW - 2*quadrantPadding,
			H: cellH - 2*quadrantPadding,
		}
		drawQuadrant(c, q, cell, address)
	}
	c.Y = top + boxH + 10
}

func drawQuadrant(c *RenderContext, q Quadrant, cell Rect, address string) {
	if q.empty() {
		c.font("I", 9)
		c.textColor(grey)
		msg := "Image indisponible"
		c.text(cell.X+(cell.W-c.measure(msg))/2, cell.Y+cell.H/2, msg)
		drawCaption(c, q.Caption, cell)
		c.degrade("map", q.Caption, nil)
		return
	}

	img, err := c.resolveQuadrant(q)
	if err != nil {
		c.imageError(cell.X+4, cell.Y+cell.H/2-20, q.Caption, err)
		return
	}
	w, h := img.aspect()
	r := FitRect(w, h, cell)
	if err := c.place(img, r); err != nil {
		c.imageError(cell.X+4, cell.Y+cell.H/2-20, q.Caption, err)
		return
	}

	if q.IsMap {
		drawCrosshair(c, r)
		drawNorthArrow(c, r)
	}
	drawCaption(c, q.Caption, r)
	if address != "" && widePlanCaption.MatchString(q.Caption) {
		drawAddressBox(c, address, r)
	}
}

// drawCaption puts a translucent label in the top-left corner of r.
func drawCaption(c *RenderContext, caption string, r Rect) {
	if caption == "" {
		return
	}
	c.font("B", 8)
	tw := c.measure(caption)
	c.pdf.SetAlpha(overlayAlpha, "Normal")
	c.fill(white)
	c.pdf.Rect(r.X+4, r.Y+4, math.Min(tw+8, r.W-8), captionHeight, "F")
	c.pdf.SetAlpha(1, "Normal")
	c.textColor(c.Theme.TitleText)
	c.text(r.X+8, r.Y+4+10, caption)
}

// drawAddressBox puts the plot address along the bottom edge of r.
func drawAddressBox(c *RenderContext, address string, r Rect) {
	c.font("", 7)
	text := fitText(c, address, r.W-16)
	c.pdf.SetAlpha(overlayAlpha, "Normal")
	c.fill(white)
	c.pdf.Rect(r.X+4, r.Y+r.H-captionHeight-4, c.measure(text)+8, captionHeight, "F")
	c.pdf.SetAlpha(1, "Normal")
	c.textColor(c.Theme.BodyText)
	c.text(r.X+8, r.Y+r.H-8, text)
}

// drawCrosshair marks the visual centre of a north-up map, where the
// geocoded point sits.
func drawCrosshair(c *RenderContext, r Rect) {
	cx, cy := r.X+r.W/2, r.Y+r.H/2
	arm := math.Min(10, math.Min(r.W, r.H)/8)
	c.stroke(red)
	c.pdf.SetLineWidth(1.5)
	c.pdf.Line(cx-arm, cy, cx+arm, cy)
	c.pdf.Line(cx, cy-arm, cx, cy+arm)
	c.pdf.SetLineWidth(1)
}

// drawNorthArrow draws a shaft with an arrowhead and an "N" in the top-right
// corner of r.
func drawNorthArrow(c *RenderContext, r Rect) {
	x := r.X + r.W - 14
	tip := r.Y + 16
	c.stroke(RGB{0, 0, 0})
	c.pdf.SetLineWidth(1.2)
	c.pdf.Line(x, tip+16, x, tip)
	c.pdf.Line(x-4, tip+6, x, tip)
	c.pdf.Line(x+4, tip+6, x, tip)
	c.pdf.SetLineWidth(1)

	c.font("B", 8)
	c.textColor(RGB{0, 0, 0})
	c.text(x-c.measure("N")/2, tip-2, "N")
}

// fitText shortens s with an ellipsis until it fits width.
func fitText(c *RenderContext, s string, width float64) string {
	if c.measure(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimSpace(string(runes)) + "…"
		if c.measure(candidate) <= width {
			return candidate
		}
	}
	return ""
}

// DrawSingleMap draws one map with the same overlays as a map quadrant,
// aspect-fitted under a title.
func DrawSingleMap(c *RenderContext, img models.MapImage, title, address string, maxHeight float64) {
	resolved, err := c.images.ResolveBytes(title, img.Data)
	r := drawResolvedWithTitle(c, resolved, err, title, "", maxHeight)
	if r.W == 0 {
		return
	}
	drawCrosshair(c, r)
	drawNorthArrow(c, r)
	if address != "" {
		drawAddressBox(c, address, r)
	}
}
