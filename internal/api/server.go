// Package api serves the dossier operations over HTTP next to the health
// and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dossier-workers/internal/cerfa"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/layout"
	"dossier-workers/internal/models"
	"dossier-workers/internal/storage"
	"dossier-workers/internal/vision"
	describephotos "dossier-workers/internal/workers/dossier/describe-photos"
)

type DossierService interface {
	Render(ctx context.Context, d *models.Dossier, opts models.RenderOptions, fetchMaps bool) (*layout.Document, error)
	FillCerfa(ctx context.Context, d *models.Dossier) (*cerfa.Result, error)
	Document(ctx context.Context, key string) (*storage.Document, error)
}

type PhotoDescriber interface {
	Execute(ctx context.Context, input *describephotos.Input) (*describephotos.Output, error)
}

type ImageTransformer interface {
	Transform(ctx context.Context, req vision.TransformRequest) (string, error)
}

type MapPreviewer interface {
	PreviewURLs(ctx context.Context, address, city string) (map[models.MapPurpose]string, error)
}

type GenerationHistory interface {
	ListByReference(ctx context.Context, reference string, limit int) ([]storage.Generation, error)
}

// Check is one readiness probe.
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps groups the collaborators. Photos, Transformer, Maps and History may be
// nil; their routes then answer 503.
type Deps struct {
	Dossiers    DossierService
	Photos      PhotoDescriber
	Transformer ImageTransformer
	Maps        MapPreviewer
	History     GenerationHistory
	Checks      []Check
}

type Config struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Server struct {
	deps   Deps
	config Config
	log    logger.Logger
	now    func() time.Time
}

func NewServer(deps Deps, config Config, log logger.Logger) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 3 * time.Minute
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 64 << 20
	}
	return &Server{
		deps:   deps,
		config: config,
		log:    log.WithFields(map[string]interface{}{"component": "api"}),
		now:    time.Now,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(s.config.RequestTimeout))
		r.Use(s.limitBody)

		r.Route("/dossiers", func(r chi.Router) {
			r.Get("/sample", s.sampleDossier)
			r.Post("/pdf", s.renderPDF)
			r.Post("/cerfa", s.fillCerfa)
			r.Get("/{reference}/generations", s.generations)
		})
		r.Route("/photos", func(r chi.Router) {
			r.Post("/describe", s.describePhotos)
			r.Post("/transform", s.transformPhoto)
		})
		r.Get("/maps/preview", s.previewMaps)
		r.Get("/documents/{key}", s.document)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.deps.Checks))
	for _, c := range s.deps.Checks {
		if err := c.Check(ctx); err != nil {
			results[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[c.Name] = "ok"
	}
	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": results})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  chimiddleware.GetReqID(r.Context()),
		}
		switch {
		case ww.Status() >= 500:
			s.log.Error("request failed", fields)
		case r.URL.Path == "/health" || r.URL.Path == "/metrics":
			s.log.Debug("request served", fields)
		default:
			s.log.Info("request served", fields)
		}
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
