package layout

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier-workers/internal/models"
)

func roundTripDossier(t testing.TB) *models.Dossier {
	return &models.Dossier{
		Reference: "DP-20250101-001",
		CreatedAt: "01/01/2025",
		Applicant: models.Applicant{Civility: "M.", FirstName: "Jean", LastName: "Dupont"},
		Plot:      models.Plot{Address: "25 Chemin des Vignes", PostalCode: "19100", Municipality: "Brive-la-Gaillarde", Area: 850, ZoningCode: "UB"},
		PhotoPairs: []models.PhotoPair{{
			Label:             "Façade Extérieure",
			BeforeData:        dataURL("image/jpeg", jpegBytes(t, 120, 80)),
			AfterData:         dataURL("image/png", pngBytes(t, 120, 80)),
			BeforeDescription: "Façade en enduit gris.",
			AfterDescription:  "Façade en enduit blanc cassé.",
		}},
	}
}

func TestRender_RoundTrip(t *testing.T) {
	doc, err := testEngine(t).Render(roundTripDossier(t), models.RenderOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "DP-20250101-001.pdf", doc.Filename)
	assert.GreaterOrEqual(t, doc.PageCount, 3)
	assert.True(t, bytes.HasPrefix(doc.Bytes, []byte("%PDF-")))
	assert.Empty(t, doc.Degraded)

	// 14 notice entries plus the empty exterior-aspect fields
	assert.GreaterOrEqual(t, bytes.Count(doc.Bytes, []byte("(\x97) Tj")), 14)
	assert.True(t, bytes.Contains(doc.Bytes, []byte("Date: 01/01/2025")))
	assert.True(t, bytes.Contains(doc.Bytes, []byte("R\xe9f\xe9rence du dossier : DP-20250101-001")))
	assert.True(t, bytes.Contains(doc.Bytes, []byte("Superficie totale :")))
	assert.True(t, bytes.Contains(doc.Bytes, []byte("(850 m\xb2) Tj")))
}

func TestRender_PhotoPageCount(t *testing.T) {
	e := testEngine(t)
	d := roundTripDossier(t)

	none := *d
	none.PhotoPairs = nil
	base, err := e.Render(&none, models.RenderOptions{}, nil)
	require.NoError(t, err)

	three := *d
	three.PhotoPairs = []models.PhotoPair{d.PhotoPairs[0], d.PhotoPairs[0], d.PhotoPairs[0]}
	withPhotos, err := e.Render(&three, models.RenderOptions{}, nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, withPhotos.PageCount-base.PageCount, 3)
	assert.False(t, bytes.Contains(base.Bytes, []byte("REPORTAGE PHOTOGRAPHIQUE")))
}

func TestRender_CorruptBeforeImage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte{0x00, 0x13, 0x37, 0xde, 0xad, 0xbe, 0xef}},
		{"truncated jpeg", truncatedJPEG(t, 400, 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := roundTripDossier(t)
			d.PhotoPairs[0].BeforeData = dataURL("image/jpeg", tt.data)
			d.PhotoPairs = append(d.PhotoPairs, models.PhotoPair{
				Label:      "Façade Latérale",
				BeforeData: dataURL("image/png", pngBytes(t, 80, 80)),
			})

			doc, err := testEngine(t).Render(d, models.RenderOptions{}, nil)
			require.NoError(t, err)

			assert.Equal(t, []string{"image: ÉTAT EXISTANT (Avant)"}, doc.Degraded)
			assert.True(t, bytes.Contains(doc.Bytes, []byte("[Erreur d'insertion de l'image: ")))
			assert.True(t, bytes.Contains(doc.Bytes, []byte("FA\xc7ADE LAT\xc9RALE")), "later pages still render")
			assert.True(t, bytes.Contains(doc.Bytes, []byte("Description - \xe9tat projet\xe9 :")))
		})
	}
}

func TestRender_FullVariant_MapsUnavailable(t *testing.T) {
	d := roundTripDossier(t)
	opts := models.RenderOptions{Variant: models.VariantFull}

	for _, maps := range []*models.MapSet{nil, {NotFound: true}} {
		doc, err := testEngine(t).Render(d, opts, maps)
		require.NoError(t, err)

		assert.Contains(t, doc.Degraded, "page: DP1")
		assert.Contains(t, doc.Degraded, "page: DP2")
		assert.Contains(t, doc.Degraded, "page: DP3")
		assert.Contains(t, doc.Degraded, "page: DP4")
		assert.NotContains(t, doc.Degraded, "page: DP6", "DP6 uses the after photo")
		assert.True(t, bytes.Contains(doc.Bytes, []byte("Plan de situation non disponible")))
	}
}

func TestRender_FullVariant_WithMaps(t *testing.T) {
	d := roundTripDossier(t)
	d.Plans.Section = dataURL("image/png", pngBytes(t, 200, 100))
	d.Plans.SectionMode = models.PlanModeUpload

	maps := &models.MapSet{Images: map[models.MapPurpose]models.MapImage{
		models.MapWide:      {Data: jpegBytes(t, 60, 40), ContentType: "image/jpeg"},
		models.MapCadastral: {Data: pngBytes(t, 60, 40), ContentType: "image/png"},
		models.MapClose:     {Data: jpegBytes(t, 60, 40), ContentType: "image/jpeg"},
		models.MapSite:      {Data: jpegBytes(t, 60, 40), ContentType: "image/jpeg"},
	}}

	tests := []struct {
		mode    string
		caption string
	}{
		{models.MapModeDetailed, "Vue depuis la rue"},
		{models.MapModeClassic, "Vue large \x96 plan IGN"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			doc, err := testEngine(t).Render(d, models.RenderOptions{Variant: models.VariantFull, MapMode: tt.mode}, maps)
			require.NoError(t, err)

			assert.Equal(t, []string{"page: DP4"}, doc.Degraded)
			assert.True(t, bytes.Contains(doc.Bytes, []byte(tt.caption)))
			assert.True(t, bytes.Contains(doc.Bytes, []byte("Vue a\xe9rienne de la parcelle")), "DP2 falls back to the site map")
			assert.True(t, bytes.Contains(doc.Bytes, []byte("Plan en coupe \\(document fourni\\)")))
		})
	}
}

func TestRender_ThemesAndOrientations(t *testing.T) {
	d := roundTripDossier(t)
	for _, theme := range []string{models.ThemeClassic, models.ThemeModern, models.ThemeNature, models.ThemeArchitect, models.ThemeAdministrative, "inconnu"} {
		for _, orientation := range []string{models.OrientationPortrait, models.OrientationLandscape} {
			doc, err := testEngine(t).Render(d, models.RenderOptions{Theme: theme, Orientation: orientation}, nil)
			require.NoError(t, err, "%s/%s", theme, orientation)
			assert.GreaterOrEqual(t, doc.PageCount, 3)
		}
	}
}

func TestRender_InvalidDossier(t *testing.T) {
	_, err := testEngine(t).Render(&models.Dossier{CreatedAt: "01/01/2025"}, models.RenderOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDossierInvalid))

	_, err = testEngine(t).Render(nil, models.RenderOptions{}, nil)
	assert.True(t, errors.Is(err, models.ErrDossierInvalid))
}

func TestRender_SampleDossierWithoutAssets(t *testing.T) {
	d := models.SampleDossier(mustDate(t))
	doc, err := testEngine(t).Render(&d, models.RenderOptions{Variant: models.VariantFull}, nil)
	require.NoError(t, err)

	// asset paths cannot be read without an asset root; each becomes a caption
	var images int
	for _, item := range doc.Degraded {
		if strings.HasPrefix(item, "image: ") {
			images++
		}
	}
	assert.Greater(t, images, 0)
	assert.True(t, bytes.Contains(doc.Bytes, []byte("DP11 :")))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "DP-20250101-001.pdf", Filename("DP-20250101-001"))
	assert.Equal(t, "DP_2025_01.pdf", Filename("DP 2025/01"))
	assert.Equal(t, "dossier.pdf", Filename("  "))
	assert.Equal(t, "etc_passwd.pdf", Filename("../etc/passwd"))
}
