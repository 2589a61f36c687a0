// internal/layout/context.go
package layout

import (
	"fmt"

	"github.com/go-pdf/fpdf"

	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/models"
)

// A4 in points.
const (
	a4Width  = 595.28
	a4Height = 841.89

	pageMargin   = 50.0
	headerBand   = 15.0
	headerBottom = 80.0
	fontFamily   = "Helvetica"
)

// Geometry describes one page orientation.
type Geometry struct {
	Width  float64
	Height float64
	Margin float64
}

// GeometryFor returns A4 geometry, swapping dimensions for landscape.
func GeometryFor(orientation string) Geometry {
	if orientation == models.OrientationLandscape {
		return Geometry{Width: a4Height, Height: a4Width, Margin: pageMargin}
	}
	return Geometry{Width: a4Width, Height: a4Height, Margin: pageMargin}
}

// RenderContext carries the page handle, the write cursor and the theme
// through every composer. Y grows downward from the top edge.
type RenderContext struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	Geo   Geometry
	Theme Theme
	Y     float64

	headerDate string
	images     *ImageResolver
	degraded   []string
	log        logger.Logger
}

func newRenderContext(opts models.RenderOptions, d *models.Dossier, images *ImageResolver, compress bool, log logger.Logger) *RenderContext {
	orientation := "P"
	if opts.Orientation == models.OrientationLandscape {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "pt", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(compress)

	return &RenderContext{
		pdf:        pdf,
		tr:         pdf.UnicodeTranslatorFromDescriptor(""),
		Geo:        GeometryFor(opts.Orientation),
		Theme:      ThemeFor(opts.Theme),
		headerDate: d.CreatedAt,
		images:     images,
		log:        log,
	}
}

// ContentWidth is the printable width between margins.
func (c *RenderContext) ContentWidth() float64 {
	return c.Geo.Width - 2*c.Geo.Margin
}

// Bottom is the lowest Y a block may reach.
func (c *RenderContext) Bottom() float64 {
	return c.Geo.Height - c.Geo.Margin
}

// Remaining is the vertical space left on the current page.
func (c *RenderContext) Remaining() float64 {
	return c.Bottom() - c.Y
}

// PageCount reports pages emitted so far.
func (c *RenderContext) PageCount() int {
	return c.pdf.PageCount()
}

// EnsureSpace starts a new page when a block of height h would cross the
// bottom margin. It reports whether a page was added.
func (c *RenderContext) EnsureSpace(h float64) bool {
	if c.pdf.PageCount() > 0 && c.Y+h <= c.Bottom() {
		return false
	}
	c.NewPage()
	return true
}

// NewPage appends a page and stamps the running header.
func (c *RenderContext) NewPage() {
	c.pdf.AddPage()
	c.DrawHeader()
}

// DrawHeader stamps the theme band, form code and date, then moves the
// cursor to the top of the content area.
func (c *RenderContext) DrawHeader() {
	w := c.Geo.Width
	c.fill(c.Theme.Primary)
	c.pdf.Rect(0, 0, w, headerBand, "F")
	if c.Theme.Tricolor {
		c.fill(white)
		c.pdf.Rect(w/3, 0, w/3, headerBand, "F")
		c.fill(c.Theme.Secondary)
		c.pdf.Rect(2*w/3, 0, w-2*w/3, headerBand, "F")
	}

	c.font("", 10)
	c.textColor(c.Theme.Primary)
	c.text(c.Geo.Margin, 40, "CERFA n° 13703*09")
	c.textColor(c.Theme.BodyText)
	c.text(w-c.Geo.Margin-80, 40, "Date: "+c.headerDate)

	c.Y = headerBottom
}

// degrade records an in-document fallback.
func (c *RenderContext) degrade(kind, detail string, err error) {
	c.degraded = append(c.degraded, fmt.Sprintf("%s: %s", kind, detail))
	fields := map[string]interface{}{
		"kind":   kind,
		"detail": detail,
		"page":   c.pdf.PageNo(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.log.Warn("Dossier rendered with fallback", fields)
}

func (c *RenderContext) font(style string, size float64) {
	c.pdf.SetFont(fontFamily, style, size)
}

func (c *RenderContext) textColor(col RGB) {
	c.pdf.SetTextColor(col.R, col.G, col.B)
}

func (c *RenderContext) fill(col RGB) {
	c.pdf.SetFillColor(col.R, col.G, col.B)
}

func (c *RenderContext) stroke(col RGB) {
	c.pdf.SetDrawColor(col.R, col.G, col.B)
}

// text draws s with its baseline at y.
func (c *RenderContext) text(x, y float64, s string) {
	c.pdf.Text(x, y, c.tr(s))
}

// measure returns the width of s in the current font.
func (c *RenderContext) measure(s string) float64 {
	return c.pdf.GetStringWidth(c.tr(s))
}
