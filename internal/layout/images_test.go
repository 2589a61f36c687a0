package layout

import (
	"bytes"
	"encoding/base64"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"dossier-workers/internal/models"
)

func TestFitRect_PreservesAspectAndFits(t *testing.T) {
	boxes := []Rect{
		{X: 50, Y: 100, W: 495, H: 300},
		{X: 0, Y: 0, W: 100, H: 400},
		{X: 10, Y: 10, W: 37.5, H: 12.25},
	}
	sources := [][2]float64{{600, 400}, {400, 600}, {1, 1}, {4000, 30}, {30, 4000}}

	for _, box := range boxes {
		for _, src := range sources {
			r := FitRect(src[0], src[1], box)
			assert.InDelta(t, src[0]/src[1], r.W/r.H, 1e-9)
			assert.LessOrEqual(t, r.W, box.W+1e-9)
			assert.LessOrEqual(t, r.H, box.H+1e-9)
			// one dimension touches the box
			assert.True(t, math.Abs(r.W-box.W) < 1e-9 || math.Abs(r.H-box.H) < 1e-9)
			// centred
			assert.InDelta(t, box.X+box.W/2, r.X+r.W/2, 1e-9)
			assert.InDelta(t, box.Y+box.H/2, r.Y+r.H/2, 1e-9)
		}
	}
}

func TestFitRect_Degenerate(t *testing.T) {
	r := FitRect(0, 10, Rect{X: 5, Y: 6, W: 100, H: 100})
	assert.Equal(t, Rect{X: 5, Y: 6}, r)
}

func TestImageResolver_Sources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "avant 1.jpeg"), jpegBytes(t, 40, 30), 0o644))

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, testImage(20, 10)))

	r := NewImageResolver(dir, 0)

	tests := []struct {
		name     string
		ref      models.ImageRef
		wantKind string
		wantW    int
		wantH    int
	}{
		{"png data url", dataURL("image/png", pngBytes(t, 60, 40)), "png", 60, 40},
		{"jpeg data url", dataURL("image/jpeg", jpegBytes(t, 30, 60)), "jpg", 30, 60},
		{"bare base64 jpeg", models.ImageRef(base64.StdEncoding.EncodeToString(jpegBytes(t, 16, 16))), "jpg", 16, 16},
		{"bmp re-encoded", dataURL("image/bmp", bmpBuf.Bytes()), "png", 20, 10},
		{"asset path", "/images/avant 1.jpeg", "jpg", 40, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := r.Resolve(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, img.kind)
			assert.Equal(t, tt.wantW, img.width)
			assert.Equal(t, tt.wantH, img.height)
		})
	}
}

func TestImageResolver_Failures(t *testing.T) {
	r := NewImageResolver(t.TempDir(), 0)

	tests := []struct {
		name string
		ref  models.ImageRef
		want error
	}{
		{"empty", "", ErrImageEmpty},
		{"corrupt bytes", dataURL("image/jpeg", []byte("definitely not a jpeg")), ErrImageUnsupported},
		{"truncated jpeg", dataURL("image/jpeg", truncatedJPEG(t, 400, 300)), ErrImageUnsupported},
		{"bad base64", "data:image/png;base64,@@@", ErrImageUnsupported},
		{"missing asset", "/images/absent.png", ErrImageAsset},
		{"traversal stays in root", "/../../etc/passwd.png", ErrImageAsset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.ref)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestImageResolver_KeepsJPEGBytes(t *testing.T) {
	raw := jpegBytes(t, 64, 48)

	img, err := NewImageResolver("", 0).Resolve(dataURL("image/jpeg", raw))
	require.NoError(t, err)
	assert.Equal(t, "jpg", img.kind)
	assert.Equal(t, raw, img.data)
}

func TestImageResolver_DownscalesOversize(t *testing.T) {
	r := NewImageResolver("", 100*100)

	img, err := r.Resolve(dataURL("image/png", pngBytes(t, 400, 200)))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.width*img.height, 100*100)
	assert.InDelta(t, 2.0, float64(img.width)/float64(img.height), 0.05)

	jpg, err := r.Resolve(dataURL("image/jpeg", jpegBytes(t, 300, 300)))
	require.NoError(t, err)
	assert.Equal(t, "jpg", jpg.kind)
	assert.LessOrEqual(t, jpg.width*jpg.height, 100*100)
}

func TestImageResolver_CachesPerReference(t *testing.T) {
	r := NewImageResolver("", 0)
	ref := dataURL("image/png", pngBytes(t, 10, 10))

	a, err := r.Resolve(ref)
	require.NoError(t, err)
	b, err := r.Resolve(ref)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestDrawImagePair(t *testing.T) {
	t.Run("two images share the row", func(t *testing.T) {
		c := newTestContext(t, models.OrientationPortrait)
		c.NewPage()
		top := c.Y

		ok := DrawImagePair(c,
			ImageSlot{Ref: dataURL("image/png", pngBytes(t, 60, 40)), Title: "Avant"},
			ImageSlot{Ref: dataURL("image/jpeg", jpegBytes(t, 40, 60)), Title: "Après"},
			300)

		assert.True(t, ok)
		assert.Empty(t, c.degraded)
		assert.Greater(t, c.Y, top)
		assert.LessOrEqual(t, c.Y, top+imageTitleAdvance+300+14)
	})

	t.Run("lone image goes full width", func(t *testing.T) {
		c := newTestContext(t, models.OrientationPortrait)
		c.NewPage()
		top := c.Y

		ok := DrawImagePair(c, ImageSlot{}, ImageSlot{Ref: dataURL("image/png", pngBytes(t, 100, 50)), Title: "Après"}, 0)

		assert.True(t, ok)
		// full content width at 2:1 is ~247pt tall
		assert.InDelta(t, top+imageTitleAdvance+c.ContentWidth()/2+12+8, c.Y, 0.01)
	})

	t.Run("both empty", func(t *testing.T) {
		c := newTestContext(t, models.OrientationPortrait)
		c.NewPage()
		assert.False(t, DrawImagePair(c, ImageSlot{}, ImageSlot{}, 0))
	})

	t.Run("corrupt side gets caption, other side still drawn", func(t *testing.T) {
		c := newTestContext(t, models.OrientationPortrait)
		c.NewPage()

		ok := DrawImagePair(c,
			ImageSlot{Ref: dataURL("image/jpeg", []byte{0xff, 0xd8, 0x00, 0x01}), Title: "Avant"},
			ImageSlot{Ref: dataURL("image/png", pngBytes(t, 60, 40)), Title: "Après"},
			300)

		assert.True(t, ok)
		assert.Equal(t, []string{"image: Avant"}, c.degraded)
		out := renderOutput(t, c)
		assert.True(t, bytes.Contains(out, []byte("[Erreur d'insertion de l'image: Avant]")))
		assert.True(t, bytes.Contains(out, []byte("/Subtype /Image")))
	})
}
