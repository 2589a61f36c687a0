// internal/layout/images.go
package layout

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"dossier-workers/internal/models"
)

var (
	ErrImageEmpty       = errors.New("IMAGE_EMPTY")
	ErrImageUnsupported = errors.New("IMAGE_UNSUPPORTED")
	ErrImageAsset       = errors.New("IMAGE_ASSET_UNREADABLE")
)

const (
	defaultMaxPixels = 4_000_000
	jpegQuality      = 85

	imageFallbackOffset = 40.0
	pairGutter          = 20.0
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// Rect is a placed box in page coordinates.
type Rect struct {
	X, Y, W, H float64
}

// FitRect scales a srcW×srcH image to the largest size that fits inside box
// while keeping its aspect ratio, and centres it in the leftover space.
func FitRect(srcW, srcH float64, box Rect) Rect {
	if srcW <= 0 || srcH <= 0 || box.W <= 0 || box.H <= 0 {
		return Rect{X: box.X, Y: box.Y}
	}
	scale := math.Min(box.W/srcW, box.H/srcH)
	w, h := srcW*scale, srcH*scale
	return Rect{
		X: box.X + (box.W-w)/2,
		Y: box.Y + (box.H-h)/2,
		W: w,
		H: h,
	}
}

// resolvedImage is a decoded reference ready for fpdf.
type resolvedImage struct {
	name   string
	kind   string // fpdf image type: "jpg" or "png"
	data   []byte
	width  int
	height int
}

func (r *resolvedImage) aspect() (float64, float64) {
	return float64(r.width), float64(r.height)
}

type cachedImage struct {
	img *resolvedImage
	err error
}

// ImageResolver turns image references into embeddable bytes. One resolver
// serves one document; results, including failures, are cached per key.
type ImageResolver struct {
	assetRoot string
	maxPixels int
	cache     map[string]cachedImage
}

func NewImageResolver(assetRoot string, maxPixels int) *ImageResolver {
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &ImageResolver{
		assetRoot: assetRoot,
		maxPixels: maxPixels,
		cache:     make(map[string]cachedImage),
	}
}

// Resolve loads and normalises a data URL, bare base64 payload or asset path.
func (r *ImageResolver) Resolve(ref models.ImageRef) (*resolvedImage, error) {
	key := "ref:" + string(ref)
	if hit, ok := r.cache[key]; ok {
		return hit.img, hit.err
	}
	raw, err := r.load(ref)
	var img *resolvedImage
	if err == nil {
		img, err = r.normalize(raw)
	}
	r.cache[key] = cachedImage{img: img, err: err}
	return img, err
}

// ResolveBytes normalises raw image bytes such as a fetched map tile.
func (r *ImageResolver) ResolveBytes(key string, raw []byte) (*resolvedImage, error) {
	key = "raw:" + key
	if hit, ok := r.cache[key]; ok {
		return hit.img, hit.err
	}
	img, err := r.normalize(raw)
	r.cache[key] = cachedImage{img: img, err: err}
	return img, err
}

func (r *ImageResolver) load(ref models.ImageRef) ([]byte, error) {
	s := strings.TrimSpace(string(ref))
	if s == "" {
		return nil, ErrImageEmpty
	}
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", ErrImageUnsupported)
		}
		return decodeBase64(s[comma+1:])
	}
	if imageExtensions[strings.ToLower(filepath.Ext(s))] {
		return r.readAsset(s)
	}
	return decodeBase64(s)
}

func (r *ImageResolver) readAsset(p string) ([]byte, error) {
	if r.assetRoot == "" {
		return nil, fmt.Errorf("%w: no asset root for %q", ErrImageAsset, p)
	}
	clean := path.Clean("/" + filepath.ToSlash(p))
	data, err := os.ReadFile(filepath.Join(r.assetRoot, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageAsset, err)
	}
	return data, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrImageUnsupported, err)
	}
	if len(data) == 0 {
		return nil, ErrImageEmpty
	}
	return data, nil
}

// normalize decodes the image, passes small JPEGs through with their
// original bytes and re-encodes everything else as PNG (or JPEG when
// downscaling a JPEG).
func (r *ImageResolver) normalize(raw []byte) (*resolvedImage, error) {
	if len(raw) == 0 {
		return nil, ErrImageEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrImageUnsupported)
	}

	// A header that parses says nothing about the scan data, so every
	// image is decoded in full before it reaches the PDF.
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnsupported, err)
	}

	oversize := cfg.Width*cfg.Height > r.maxPixels
	if format == "jpeg" && !oversize {
		return newResolved("jpg", raw, cfg.Width, cfg.Height), nil
	}
	if oversize {
		src = downscale(src, r.maxPixels)
	}
	b := src.Bounds()

	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImageUnsupported, err)
		}
		return newResolved("jpg", buf.Bytes(), b.Dx(), b.Dy()), nil
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnsupported, err)
	}
	return newResolved("png", buf.Bytes(), b.Dx(), b.Dy()), nil
}

func downscale(src image.Image, maxPixels int) image.Image {
	b := src.Bounds()
	scale := math.Sqrt(float64(maxPixels) / float64(b.Dx()*b.Dy()))
	w := int(math.Max(1, math.Floor(float64(b.Dx())*scale)))
	h := int(math.Max(1, math.Floor(float64(b.Dy())*scale)))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func newResolved(kind string, data []byte, w, h int) *resolvedImage {
	sum := sha256.Sum256(data)
	return &resolvedImage{
		name:   "img-" + hex.EncodeToString(sum[:12]),
		kind:   kind,
		data:   data,
		width:  w,
		height: h,
	}
}

// place registers img with the document and draws it into r. fpdf keeps a
// sticky error, so a failed registration is cleared and returned.
func (c *RenderContext) place(img *resolvedImage, r Rect) error {
	opts := fpdf.ImageOptions{ImageType: img.kind}
	c.pdf.RegisterImageOptionsReader(img.name, opts, bytes.NewReader(img.data))
	if c.pdf.Err() {
		err := c.pdf.Error()
		c.pdf.ClearError()
		return err
	}
	c.pdf.ImageOptions(img.name, r.X, r.Y, r.W, r.H, false, opts, 0, "")
	if c.pdf.Err() {
		err := c.pdf.Error()
		c.pdf.ClearError()
		return err
	}
	return nil
}

// frame draws the thin border around a placed image.
func (c *RenderContext) frame(r Rect) {
	c.stroke(c.Theme.Border)
	c.pdf.SetLineWidth(1)
	c.pdf.Rect(r.X-2, r.Y-2, r.W+4, r.H+4, "D")
}

// imageError draws the red caption standing in for an image.
func (c *RenderContext) imageError(x, y float64, title string, err error) {
	c.font("", 10)
	c.textColor(red)
	c.text(x, y+20, fmt.Sprintf("[Erreur d'insertion de l'image: %s]", title))
	c.degrade("image", title, err)
}

// ImageSlot is one titled image.
type ImageSlot struct {
	Ref   models.ImageRef
	Title string
}

func (s ImageSlot) present() bool {
	return !s.Ref.Empty()
}

const (
	imageTitleSize    = 12.0
	imageTitleAdvance = 18.0
	minImageHeight    = 120.0
)

// DrawImageWithTitle draws a title, then the image aspect-fitted to the
// content width and at most maxHeight tall, then an optional caption.
// It returns false when the slot is empty.
func DrawImageWithTitle(c *RenderContext, slot ImageSlot, caption string, maxHeight float64) bool {
	if !slot.present() {
		return false
	}
	img, err := c.images.Resolve(slot.Ref)
	drawResolvedWithTitle(c, img, err, slot.Title, caption, maxHeight)
	return true
}

func drawResolvedWithTitle(c *RenderContext, img *resolvedImage, err error, title, caption string, maxHeight float64) Rect {
	c.EnsureSpace(imageTitleAdvance + minImageHeight)
	c.font("B", imageTitleSize)
	c.textColor(c.Theme.TitleText)
	c.text(c.Geo.Margin, c.Y+imageTitleSize, title)
	c.Y += imageTitleAdvance

	if err != nil {
		c.imageError(c.Geo.Margin, c.Y, title, err)
		c.Y += imageFallbackOffset
		return Rect{}
	}

	captionReserve := 0.0
	if caption != "" {
		captionReserve = 20
	}
	avail := c.Remaining() - captionReserve - 10
	if maxHeight > 0 && maxHeight < avail {
		avail = maxHeight
	}
	w, h := img.aspect()
	width := c.ContentWidth()
	box := Rect{X: c.Geo.Margin, Y: c.Y, W: width, H: math.Min(avail, width*h/w)}
	r := FitRect(w, h, box)

	if perr := c.place(img, r); perr != nil {
		c.imageError(c.Geo.Margin, c.Y, title, perr)
		c.Y += imageFallbackOffset
		return Rect{}
	}
	c.frame(r)
	c.Y = r.Y + r.H + 12

	if caption != "" {
		FlowText(c, caption, TextStyle{Style: "I", Size: 9, Color: c.Theme.BodyText, X: c.Geo.Margin, LineSpacing: 3})
	}
	c.Y += 8
	return r
}

// DrawImagePair lays two images side by side in equal columns sharing one
// maximum height. A lone image is drawn full width. It returns false when
// both slots are empty.
func DrawImagePair(c *RenderContext, left, right ImageSlot, maxHeight float64) bool {
	switch {
	case !left.present() && !right.present():
		return false
	case !right.present():
		return DrawImageWithTitle(c, left, "", maxHeight)
	case !left.present():
		return DrawImageWithTitle(c, right, "", maxHeight)
	}

	c.EnsureSpace(imageTitleAdvance + minImageHeight)
	colW := (c.ContentWidth() - pairGutter) / 2
	slots := [2]ImageSlot{left, right}
	xs := [2]float64{c.Geo.Margin, c.Geo.Margin + colW + pairGutter}

	c.font("B", 11)
	c.textColor(c.Theme.TitleText)
	for i, s := range slots {
		c.text(xs[i], c.Y+11, s.Title)
	}
	c.Y += imageTitleAdvance

	shared := c.Remaining() - 10
	if maxHeight > 0 && maxHeight < shared {
		shared = maxHeight
	}

	type column struct {
		img *resolvedImage
		err error
		r   Rect
	}
	var cols [2]column
	rowH := 0.0
	for i, s := range slots {
		img, err := c.images.Resolve(s.Ref)
		cols[i] = column{img: img, err: err}
		if err != nil {
			rowH = math.Max(rowH, imageFallbackOffset)
			continue
		}
		w, h := img.aspect()
		fit := FitRect(w, h, Rect{X: xs[i], Y: c.Y, W: colW, H: shared})
		cols[i].r = fit
		rowH = math.Max(rowH, fit.H)
	}

	top := c.Y
	for i, col := range cols {
		if col.err == nil {
			// centre vertically within the row actually used
			col.r.Y = top + (rowH-col.r.H)/2
			col.err = c.place(col.img, col.r)
			if col.err == nil {
				c.frame(col.r)
				continue
			}
			rowH = math.Max(rowH, imageFallbackOffset)
		}
		c.imageError(xs[i], top, slots[i].Title, col.err)
	}
	c.Y = top + rowH + 14
	return true
}
