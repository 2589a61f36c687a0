package cerfa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/models"
)

var (
	ErrTemplateMissing = errors.New("CERFA_TEMPLATE_MISSING")
	ErrFillFailed      = errors.New("CERFA_FILL_FAILED")
)

type Config struct {
	TemplatePath string
	CatalogPath  string
}

// Result is a filled form ready to store or download.
type Result struct {
	Bytes    []byte
	Filename string
	Filled   int
	Skipped  []string
}

type Filler struct {
	config   Config
	catalog  *Catalog
	bindings []Binding
	log      logger.Logger
}

// NewFiller loads the field catalog when one is configured. The template is
// read on every fill so it can be replaced without a restart.
func NewFiller(config Config, log logger.Logger) (*Filler, error) {
	f := &Filler{
		config:   config,
		bindings: Bindings,
		log:      log.WithFields(map[string]interface{}{"component": "cerfa"}),
	}
	if config.CatalogPath != "" {
		catalog, err := LoadCatalog(config.CatalogPath)
		if err != nil {
			return nil, err
		}
		f.catalog = catalog
	}
	return f, nil
}

// Filename is the download name of the filled form.
func Filename(reference string) string {
	return "cerfa_" + models.FileStem(reference, "dp") + ".pdf"
}

// Fill maps the dossier onto the template and locks every written field.
func (f *Filler) Fill(ctx context.Context, d *models.Dossier) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	template, err := os.ReadFile(f.config.TemplatePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, f.config.TemplatePath)
		}
		return nil, fmt.Errorf("%w: %v", ErrFillFailed, err)
	}

	values, skipped := f.catalog.Filter(Evaluate(d, f.bindings))
	if len(skipped) > 0 {
		f.log.Warn("Form fields not present in template", map[string]interface{}{
			"reference": d.Reference,
			"fields":    strings.Join(skipped, ","),
			"count":     len(skipped),
		})
	}

	formJSON, err := FormJSON(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFillFailed, err)
	}

	var out bytes.Buffer
	conf := model.NewDefaultConfiguration()
	if err := api.FillForm(bytes.NewReader(template), bytes.NewReader(formJSON), &out, conf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFillFailed, err)
	}

	f.log.Info("Form filled", map[string]interface{}{
		"reference": d.Reference,
		"filled":    values.Len(),
		"skipped":   len(skipped),
	})

	return &Result{
		Bytes:    out.Bytes(),
		Filename: Filename(d.Reference),
		Filled:   values.Len(),
		Skipped:  skipped,
	}, nil
}

type formTextField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Locked bool   `json:"locked"`
}

type formCheckBox struct {
	Name   string `json:"name"`
	Value  bool   `json:"value"`
	Locked bool   `json:"locked"`
}

type formGroup struct {
	TextFields []formTextField `json:"textfield,omitempty"`
	CheckBoxes []formCheckBox  `json:"checkbox,omitempty"`
}

type formDocument struct {
	Forms []formGroup `json:"forms"`
}

// FormJSON renders values in the pdfcpu form import format, sorted by field
// name, with every field locked.
func FormJSON(v Values) ([]byte, error) {
	var g formGroup
	for _, name := range sortedKeys(v.Text) {
		g.TextFields = append(g.TextFields, formTextField{Name: name, Value: v.Text[name], Locked: true})
	}
	for _, name := range sortedKeys(v.Checks) {
		g.CheckBoxes = append(g.CheckBoxes, formCheckBox{Name: name, Value: v.Checks[name], Locked: true})
	}
	return json.Marshal(formDocument{Forms: []formGroup{g}})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
