package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"dossier-workers/internal/cerfa"
	"dossier-workers/internal/dossier"
	"dossier-workers/internal/geo"
	"dossier-workers/internal/models"
	"dossier-workers/internal/storage"
	"dossier-workers/internal/vision"
	describephotos "dossier-workers/internal/workers/dossier/describe-photos"
)

var errUnavailable = errors.New("not configured on this instance")

type renderRequest struct {
	Dossier     json.RawMessage `json:"dp"`
	Theme       string          `json:"theme"`
	Orientation string          `json:"orientation"`
	Variant     string          `json:"variant"`
	MapMode     string          `json:"mapMode"`
	FetchMaps   *bool           `json:"fetchMaps,omitempty"`
}

type cerfaRequest struct {
	Dossier json.RawMessage `json:"dp"`
}

type describeRequest struct {
	Dossier     json.RawMessage `json:"dp"`
	Model       string          `json:"model"`
	Prompt      string          `json:"prompt"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"maxTokens"`
}

type transformRequest struct {
	Image  models.ImageRef `json:"image"`
	Prompt string          `json:"prompt"`
}

func (s *Server) sampleDossier(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.SampleDossier(s.now()))
}

func (s *Server) renderPDF(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := dossier.Decode(req.Dossier)
	if err != nil {
		s.fail(w, err)
		return
	}

	fetchMaps := req.FetchMaps == nil || *req.FetchMaps
	doc, err := s.deps.Dossiers.Render(r.Context(), d, models.RenderOptions{
		Theme:       req.Theme,
		Orientation: req.Orientation,
		Variant:     req.Variant,
		MapMode:     req.MapMode,
	}, fetchMaps)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(doc.Degraded) > 0 {
		w.Header().Set("X-Dossier-Degraded", strconv.Itoa(len(doc.Degraded)))
	}
	writePDF(w, doc.Filename, doc.Bytes)
}

func (s *Server) fillCerfa(w http.ResponseWriter, r *http.Request) {
	var req cerfaRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := dossier.Decode(req.Dossier)
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.deps.Dossiers.FillCerfa(r.Context(), d)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(res.Skipped) > 0 {
		w.Header().Set("X-Cerfa-Skipped-Fields", strings.Join(res.Skipped, ","))
	}
	writePDF(w, res.Filename, res.Bytes)
}

func (s *Server) describePhotos(w http.ResponseWriter, r *http.Request) {
	if s.deps.Photos == nil {
		s.fail(w, errUnavailable)
		return
	}
	var req describeRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.deps.Photos.Execute(r.Context(), &describephotos.Input{
		Dossier:     req.Dossier,
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": out.Warning == "",
		"result":  out,
	})
}

func (s *Server) transformPhoto(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transformer == nil {
		s.fail(w, errUnavailable)
		return
	}
	var req transformRequest
	if !s.decode(w, r, &req) {
		return
	}
	image, err := s.deps.Transformer.Transform(r.Context(), vision.TransformRequest{Prompt: req.Prompt, Image: req.Image})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "image": image})
}

func (s *Server) previewMaps(w http.ResponseWriter, r *http.Request) {
	if s.deps.Maps == nil {
		s.fail(w, errUnavailable)
		return
	}
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if address == "" || city == "" {
		writeError(w, http.StatusBadRequest, "address and city are required")
		return
	}
	urls, err := s.deps.Maps.PreviewURLs(r.Context(), address, city)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "maps": urls})
}

func (s *Server) document(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Dossiers.Document(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writePDF(w, doc.Filename, doc.Data)
}

func (s *Server) generations(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.fail(w, errUnavailable)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.deps.History.ListByReference(r.Context(), chi.URLParam(r, "reference"), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "generations": rows})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// fail maps a domain error to its HTTP status.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("request error", map[string]interface{}{"error": err.Error(), "status": status})
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrDossierInvalid), errors.Is(err, vision.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, geo.ErrAddressNotFound):
		return http.StatusNotFound
	case errors.Is(err, vision.ErrVisionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, vision.ErrVisionFailed), errors.Is(err, geo.ErrMapFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, cerfa.ErrTemplateMissing), errors.Is(err, errUnavailable), errors.Is(err, dossier.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

func writePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
