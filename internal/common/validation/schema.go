package validation

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed dossier.schema.json
var dossierSchema []byte

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the result into "field: message" strings.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

var (
	compileOnce    sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

func schema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(dossierSchema))
	})
	return compiledSchema, compileErr
}

// ValidateDossier checks a raw wizard payload against the dossier schema.
// document may be JSON bytes or an already decoded value.
func ValidateDossier(document interface{}) (*ValidationResult, error) {
	s, err := schema()
	if err != nil {
		return nil, fmt.Errorf("dossier schema: %w", err)
	}

	var loader gojsonschema.JSONLoader
	if raw, ok := document.([]byte); ok {
		loader = gojsonschema.NewBytesLoader(raw)
	} else {
		loader = gojsonschema.NewGoLoader(document)
	}

	result, err := s.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{Valid: result.Valid(), Errors: errs}, nil
}
