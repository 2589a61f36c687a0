package layout

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/models"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	return img
}

func pngBytes(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func jpegBytes(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

// truncatedJPEG keeps a valid header but cuts the scan data short.
func truncatedJPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	full := jpegBytes(t, w, h)
	cut := full[:len(full)/3]
	_, err := jpeg.DecodeConfig(bytes.NewReader(cut))
	require.NoError(t, err, "header must survive the cut")
	return cut
}

func dataURL(mime string, data []byte) models.ImageRef {
	return models.ImageRef("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
}

func newTestContext(t testing.TB, orientation string) *RenderContext {
	t.Helper()
	opts := models.RenderOptions{Orientation: orientation}.Normalize()
	d := &models.Dossier{Reference: "DP-TEST", CreatedAt: "01/01/2025"}
	return newRenderContext(opts, d, NewImageResolver("", 0), false, logger.NewTestLogger(t))
}

func renderOutput(t testing.TB, c *RenderContext) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.pdf.Output(&buf))
	return buf.Bytes()
}

func testEngine(t testing.TB) *Engine {
	t.Helper()
	return NewEngine(Config{Compress: false}, logger.NewTestLogger(t))
}

func mustDate(t testing.TB) time.Time {
	t.Helper()
	return time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
}
