package cerfa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/models"
)

func TestEvaluate(t *testing.T) {
	d := &models.Dossier{
		Reference: "DP-1",
		CreatedAt: "01/02/2025",
		Applicant: models.Applicant{Civility: "Mme", LastName: "Durand", FirstName: "Claire"},
		Plot:      models.Plot{CadastralSection: "AB", ParcelNumber: "123", Area: 812.5, InAllotment: true},
		Works:     models.Works{Description: "Ravalement", FloorAreaExisting: 0},
		Cerfa: models.CerfaExtras{
			Amenities: &models.Amenities{Fence: true},
			Architect: &models.Architect{Engaged: false, Name: "Ignoré"},
		},
	}

	got := Evaluate(d, Bindings)

	want := Values{
		Text: map[string]string{
			"D1N_nom":           "Durand",
			"D1P_prenom":        "Claire",
			"T2S_section":       "AB",
			"T2N_numero":        "123",
			"T2T_superficie":    "812.5",
			"C2ZD1_description": "Ravalement",
			"E1D_date":          "01/02/2025",
		},
		Checks: map[string]bool{
			"D1F_femme":       true,
			"D5A_acceptation": true,
			"T2J_lotissement": true,
			"C2ZC3_cloture":   true,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_SignatureDateWins(t *testing.T) {
	d := &models.Dossier{CreatedAt: "01/02/2025", Cerfa: models.CerfaExtras{SignatureDate: "03/04/2025", SignaturePlace: "Brive"}}
	got := Evaluate(d, Bindings)
	assert.Equal(t, "03/04/2025", got.Text["E1D_date"])
	assert.Equal(t, "Brive", got.Text["E1L_lieu"])
}

func TestEvaluate_SampleFillsCoreSections(t *testing.T) {
	d := models.SampleDossier(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	got := Evaluate(&d, Bindings)
	for _, field := range []string{"D1N_nom", "T2L_localite", "C2ZD1_description", "E1D_date"} {
		assert.NotEmpty(t, got.Text[field], field)
	}
}

func TestCatalog_Filter(t *testing.T) {
	catalog := NewCatalog([]Field{
		{Name: "D1N_nom", Type: FieldText},
		{Name: "D1H_homme", Type: FieldCheckBox},
		{Name: "T2S_section", Type: FieldCheckBox},
		{Name: "E1D_date"},
	})
	in := Values{
		Text:   map[string]string{"D1N_nom": "Durand", "T2S_section": "AB", "E1D_date": "x", "Z9_absent": "y"},
		Checks: map[string]bool{"D1H_homme": true, "D5A_acceptation": true},
	}

	out, skipped := catalog.Filter(in)

	want := Values{
		Text:   map[string]string{"D1N_nom": "Durand", "E1D_date": "x"},
		Checks: map[string]bool{"D1H_homme": true},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"D5A_acceptation", "T2S_section", "Z9_absent"}, skipped)

	var nilCatalog *Catalog
	all, none := nilCatalog.Filter(in)
	assert.Equal(t, in.Len(), all.Len())
	assert.Empty(t, none)
}

func TestLoadCatalog_ShippedScanCoversBindings(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join("..", "..", "assets", "cerfa_13703-09_fields.json"))
	require.NoError(t, err)

	for _, b := range Bindings {
		kind := FieldText
		if b.Check != nil {
			kind = FieldCheckBox
		}
		assert.True(t, catalog.Accepts(b.Field, kind), b.Field)
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = LoadCatalog(bad)
	assert.Error(t, err)
}

func TestFormJSON(t *testing.T) {
	raw, err := FormJSON(Values{
		Text:   map[string]string{"T2S_section": "AB", "D1N_nom": "Durand"},
		Checks: map[string]bool{"D1H_homme": true},
	})
	require.NoError(t, err)

	var doc formDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	want := formDocument{Forms: []formGroup{{
		TextFields: []formTextField{
			{Name: "D1N_nom", Value: "Durand", Locked: true},
			{Name: "T2S_section", Value: "AB", Locked: true},
		},
		CheckBoxes: []formCheckBox{{Name: "D1H_homme", Value: true, Locked: true}},
	}}}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("FormJSON() mismatch (-want +got):\n%s", diff)
	}
}

const fixtureForm = `{
	"paper": "A4P",
	"origin": "LowerLeft",
	"fonts": {
		"input": {"name": "Helvetica", "size": 10},
		"label": {"name": "$input"}
	},
	"pages": {
		"1": {
			"content": {
				"textfield": [
					{"id": "D1N_nom", "pos": [100, 700], "width": 200, "value": ""},
					{"id": "D1P_prenom", "pos": [100, 680], "width": 200, "value": ""},
					{"id": "T2T_superficie", "pos": [100, 660], "width": 100, "value": ""},
					{"id": "E1D_date", "pos": [100, 640], "width": 100, "value": ""}
				],
				"checkbox": [
					{"id": "D1F_femme", "pos": [100, 600], "width": 12, "value": false},
					{"id": "D1H_homme", "pos": [130, 600], "width": 12, "value": false},
					{"id": "T2J_lotissement", "pos": [160, 600], "width": 12, "value": false}
				]
			}
		}
	}
}`

// writeFixtureTemplate builds a one-page AcroForm and the matching catalog.
func writeFixtureTemplate(t *testing.T) (Config, []string) {
	t.Helper()
	dir := t.TempDir()

	var pdf bytes.Buffer
	require.NoError(t, api.Create(nil, strings.NewReader(fixtureForm), &pdf, nil))
	templatePath := filepath.Join(dir, "template.pdf")
	require.NoError(t, os.WriteFile(templatePath, pdf.Bytes(), 0o600))

	fields := []Field{
		{Name: "D1N_nom", Type: FieldText},
		{Name: "D1P_prenom", Type: FieldText},
		{Name: "T2T_superficie", Type: FieldText},
		{Name: "E1D_date", Type: FieldText},
		{Name: "D1F_femme", Type: FieldCheckBox},
		{Name: "D1H_homme", Type: FieldCheckBox},
		{Name: "T2J_lotissement", Type: FieldCheckBox},
	}
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	catalogPath := filepath.Join(dir, "fields.json")
	require.NoError(t, os.WriteFile(catalogPath, raw, 0o600))

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return Config{TemplatePath: templatePath, CatalogPath: catalogPath}, names
}

func exportedFields(t *testing.T, pdf []byte) (map[string]*form.TextField, map[string]*form.CheckBox) {
	t.Helper()
	group, err := api.ExportForm(bytes.NewReader(pdf), "filled.pdf", nil)
	require.NoError(t, err)
	require.Len(t, group.Forms, 1)

	texts := map[string]*form.TextField{}
	for _, tf := range group.Forms[0].TextFields {
		texts[tf.Name] = tf
	}
	checks := map[string]*form.CheckBox{}
	for _, cb := range group.Forms[0].CheckBoxes {
		checks[cb.Name] = cb
	}
	return texts, checks
}

func TestFiller_Fill(t *testing.T) {
	config, templateFields := writeFixtureTemplate(t)
	f, err := NewFiller(config, logger.NewTestLogger(t))
	require.NoError(t, err)

	d := &models.Dossier{
		Reference: "DP 2025/01",
		CreatedAt: "01/02/2025",
		Applicant: models.Applicant{Civility: "Mme", LastName: "Durand", FirstName: "Claire"},
		Plot:      models.Plot{CadastralSection: "AB", ParcelNumber: "123", Area: 812.5, InAllotment: true},
		Works:     models.Works{Description: "Ravalement"},
	}

	res, err := f.Fill(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "cerfa_DP_2025_01.pdf", res.Filename)
	assert.Equal(t, 6, res.Filled)
	assert.Contains(t, res.Skipped, "T2S_section")
	assert.Contains(t, res.Skipped, "C2ZD1_description")
	for _, name := range res.Skipped {
		assert.NotContains(t, templateFields, name, "skipped fields are the ones the template lacks")
	}

	texts, checks := exportedFields(t, res.Bytes)
	wantText := map[string]string{
		"D1N_nom":        "Durand",
		"D1P_prenom":     "Claire",
		"T2T_superficie": "812.5",
		"E1D_date":       "01/02/2025",
	}
	for name, want := range wantText {
		tf, ok := texts[name]
		require.True(t, ok, name)
		assert.Equal(t, want, tf.Value, name)
		assert.True(t, tf.Locked, "%s is locked", name)
	}

	require.Contains(t, checks, "D1F_femme")
	assert.True(t, checks["D1F_femme"].Value)
	assert.True(t, checks["D1F_femme"].Locked)
	require.Contains(t, checks, "T2J_lotissement")
	assert.True(t, checks["T2J_lotissement"].Value)

	require.Contains(t, checks, "D1H_homme")
	assert.False(t, checks["D1H_homme"].Value, "untouched fields keep their state")
	assert.False(t, checks["D1H_homme"].Locked)
}

func TestFiller_Fill_Errors(t *testing.T) {
	dir := t.TempDir()
	d := &models.Dossier{Reference: "DP-1", CreatedAt: "01/01/2025"}

	t.Run("template missing", func(t *testing.T) {
		f, err := NewFiller(Config{TemplatePath: filepath.Join(dir, "absent.pdf")}, logger.NewTestLogger(t))
		require.NoError(t, err)
		_, err = f.Fill(context.Background(), d)
		assert.True(t, errors.Is(err, ErrTemplateMissing))
	})

	t.Run("template is not a pdf", func(t *testing.T) {
		path := filepath.Join(dir, "broken.pdf")
		require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))
		f, err := NewFiller(Config{TemplatePath: path}, logger.NewTestLogger(t))
		require.NoError(t, err)
		_, err = f.Fill(context.Background(), d)
		assert.True(t, errors.Is(err, ErrFillFailed))
	})

	t.Run("catalog unreadable", func(t *testing.T) {
		_, err := NewFiller(Config{CatalogPath: filepath.Join(dir, "nope.json")}, logger.NewTestLogger(t))
		assert.Error(t, err)
	})
}

func TestFilename(t *testing.T) {
	tests := []struct {
		reference string
		want      string
	}{
		{" DP-2025-001 ", "cerfa_DP-2025-001.pdf"},
		{"DP 2025/01", "cerfa_DP_2025_01.pdf"},
		{`DP"1"\x`, "cerfa_DP_1_x.pdf"},
		{"  ", "cerfa_dp.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.reference))
		})
	}
}
