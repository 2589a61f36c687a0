// Package dossier orchestrates document production: validation, map fetch,
// layout, form fill, storage and the generation audit log. Workers and the
// HTTP API both go through it.
package dossier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dossier-workers/internal/cerfa"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/common/metrics"
	"dossier-workers/internal/common/validation"
	"dossier-workers/internal/layout"
	"dossier-workers/internal/models"
	"dossier-workers/internal/storage"
)

type Renderer interface {
	Render(d *models.Dossier, opts models.RenderOptions, maps *models.MapSet) (*layout.Document, error)
}

type MapFetcher interface {
	Fetch(ctx context.Context, address, city string) (*models.MapSet, error)
}

type FormFiller interface {
	Fill(ctx context.Context, d *models.Dossier) (*cerfa.Result, error)
}

type DocumentStore interface {
	Put(ctx context.Context, doc storage.Document) (string, error)
	Get(ctx context.Context, key string) (*storage.Document, error)
}

type GenerationRecorder interface {
	Record(ctx context.Context, g *storage.Generation) error
}

// Defaults fill render options the caller left empty.
type Defaults struct {
	Theme       string
	Orientation string
	Variant     string
}

// Deps groups the collaborators. Maps, Filler, Store and Log may be nil;
// the matching operations then degrade or report unavailability.
type Deps struct {
	Renderer Renderer
	Maps     MapFetcher
	Filler   FormFiller
	Store    DocumentStore
	Log      GenerationRecorder
}

var ErrUnavailable = errors.New("SERVICE_UNAVAILABLE")

type Service struct {
	deps     Deps
	defaults Defaults
	log      logger.Logger
}

func NewService(deps Deps, defaults Defaults, log logger.Logger) *Service {
	return &Service{
		deps:     deps,
		defaults: defaults,
		log:      log.WithFields(map[string]interface{}{"component": "dossier-service"}),
	}
}

// Decode validates a raw wizard payload against the dossier schema and
// decodes it. Schema violations and missing identity fields return an error
// wrapping models.ErrDossierInvalid.
func Decode(raw json.RawMessage) (*models.Dossier, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: dossier is required", models.ErrDossierInvalid)
	}
	result, err := validation.ValidateDossier([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDossierInvalid, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", models.ErrDossierInvalid, strings.Join(result.Messages(), "; "))
	}

	var d models.Dossier
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDossierInvalid, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Options merges caller options with the configured defaults.
func (s *Service) Options(opts models.RenderOptions) models.RenderOptions {
	if strings.TrimSpace(opts.Theme) == "" {
		opts.Theme = s.defaults.Theme
	}
	if strings.TrimSpace(opts.Orientation) == "" {
		opts.Orientation = s.defaults.Orientation
	}
	if strings.TrimSpace(opts.Variant) == "" {
		opts.Variant = s.defaults.Variant
	}
	return opts.Normalize()
}

// Render lays out the dossier. For the full variant the maps are fetched
// first when fetchMaps is set; any map failure only degrades the map pages.
func (s *Service) Render(ctx context.Context, d *models.Dossier, opts models.RenderOptions, fetchMaps bool) (*layout.Document, error) {
	opts = s.Options(opts)

	var maps *models.MapSet
	if opts.Variant == models.VariantFull && fetchMaps && s.deps.Maps != nil {
		set, err := s.deps.Maps.Fetch(ctx, d.Plot.Address, d.Plot.Municipality)
		if err != nil {
			s.log.Warn("Maps unavailable, rendering placeholders", map[string]interface{}{
				"reference": d.Reference,
				"error":     err.Error(),
			})
		}
		maps = set
	}

	doc, err := s.deps.Renderer.Render(d, opts, maps)
	if err != nil {
		return nil, err
	}
	metrics.ObserveDocument(doc.PageCount, len(doc.Bytes), doc.Degraded)
	return doc, nil
}

// Stored describes a document saved for later download.
type Stored struct {
	DocumentKey string   `json:"documentKey"`
	Filename    string   `json:"filename"`
	PageCount   int      `json:"pageCount,omitempty"`
	Bytes       int      `json:"bytes"`
	Degraded    []string `json:"degraded"`
	Skipped     []string `json:"skippedFields,omitempty"`
}

// Generate renders and stores the dossier and records the generation.
func (s *Service) Generate(ctx context.Context, d *models.Dossier, opts models.RenderOptions, fetchMaps bool) (*Stored, error) {
	if s.deps.Store == nil {
		return nil, fmt.Errorf("%w: no document store", ErrUnavailable)
	}
	opts = s.Options(opts)
	doc, err := s.Render(ctx, d, opts, fetchMaps)
	if err != nil {
		return nil, err
	}

	key, err := s.deps.Store.Put(ctx, storage.Document{Filename: doc.Filename, Data: doc.Bytes})
	if err != nil {
		return nil, err
	}

	degraded := doc.Degraded
	if degraded == nil {
		degraded = []string{}
	}
	s.record(ctx, &storage.Generation{
		Reference:   d.Reference,
		Kind:        storage.KindDossier,
		Variant:     opts.Variant,
		Theme:       opts.Theme,
		PageCount:   doc.PageCount,
		Bytes:       len(doc.Bytes),
		Degraded:    degraded,
		DocumentKey: key,
	})

	return &Stored{
		DocumentKey: key,
		Filename:    doc.Filename,
		PageCount:   doc.PageCount,
		Bytes:       len(doc.Bytes),
		Degraded:    degraded,
	}, nil
}

// FillCerfa fills the official form for the dossier.
func (s *Service) FillCerfa(ctx context.Context, d *models.Dossier) (*cerfa.Result, error) {
	if s.deps.Filler == nil {
		return nil, fmt.Errorf("%w: form filling is not configured", cerfa.ErrTemplateMissing)
	}
	return s.deps.Filler.Fill(ctx, d)
}

// GenerateCerfa fills, stores and records the official form.
func (s *Service) GenerateCerfa(ctx context.Context, d *models.Dossier) (*Stored, error) {
	if s.deps.Store == nil {
		return nil, fmt.Errorf("%w: no document store", ErrUnavailable)
	}
	res, err := s.FillCerfa(ctx, d)
	if err != nil {
		return nil, err
	}

	key, err := s.deps.Store.Put(ctx, storage.Document{Filename: res.Filename, Data: res.Bytes})
	if err != nil {
		return nil, err
	}

	s.record(ctx, &storage.Generation{
		Reference:   d.Reference,
		Kind:        storage.KindCerfa,
		Bytes:       len(res.Bytes),
		Degraded:    res.Skipped,
		DocumentKey: key,
	})

	return &Stored{
		DocumentKey: key,
		Filename:    res.Filename,
		Bytes:       len(res.Bytes),
		Degraded:    []string{},
		Skipped:     res.Skipped,
	}, nil
}

// Document loads a stored document.
func (s *Service) Document(ctx context.Context, key string) (*storage.Document, error) {
	if s.deps.Store == nil {
		return nil, fmt.Errorf("%w: no document store", ErrUnavailable)
	}
	return s.deps.Store.Get(ctx, key)
}

// record writes the audit row. A failed write is logged; the document is
// already stored and stays downloadable.
func (s *Service) record(ctx context.Context, g *storage.Generation) {
	if s.deps.Log == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.deps.Log.Record(recordCtx, g); err != nil {
		s.log.Warn("Generation not recorded", map[string]interface{}{
			"reference": g.Reference,
			"kind":      g.Kind,
			"error":     err.Error(),
		})
	}
}
