package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier-workers/internal/cerfa"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/geo"
	"dossier-workers/internal/layout"
	"dossier-workers/internal/models"
	"dossier-workers/internal/storage"
	"dossier-workers/internal/vision"
	describephotos "dossier-workers/internal/workers/dossier/describe-photos"
)

type fakeDossiers struct {
	gotOpts   models.RenderOptions
	gotFetch  bool
	renderErr error
	cerfaErr  error
	docs      map[string]storage.Document
}

func (f *fakeDossiers) Render(ctx context.Context, d *models.Dossier, opts models.RenderOptions, fetchMaps bool) (*layout.Document, error) {
	f.gotOpts, f.gotFetch = opts, fetchMaps
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	return &layout.Document{
		Bytes:     []byte("%PDF-1.4 dossier"),
		Filename:  layout.Filename(d.Reference),
		PageCount: 5,
		Degraded:  []string{"map: wide"},
	}, nil
}

func (f *fakeDossiers) FillCerfa(ctx context.Context, d *models.Dossier) (*cerfa.Result, error) {
	if f.cerfaErr != nil {
		return nil, f.cerfaErr
	}
	return &cerfa.Result{
		Bytes:    []byte("%PDF-1.7 cerfa"),
		Filename: cerfa.Filename(d.Reference),
		Filled:   40,
		Skipped:  []string{"X1", "X2"},
	}, nil
}

func (f *fakeDossiers) Document(ctx context.Context, key string) (*storage.Document, error) {
	doc, ok := f.docs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &doc, nil
}

type fakePhotos struct {
	got *describephotos.Input
	out *describephotos.Output
	err error
}

func (f *fakePhotos) Execute(ctx context.Context, input *describephotos.Input) (*describephotos.Output, error) {
	f.got = input
	return f.out, f.err
}

type fakeTransformer struct{ err error }

func (f fakeTransformer) Transform(ctx context.Context, req vision.TransformRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "data:image/jpeg;base64,QUZURVI=", nil
}

type fakeMaps struct{ err error }

func (f fakeMaps) PreviewURLs(ctx context.Context, address, city string) (map[models.MapPurpose]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[models.MapPurpose]string{models.MapWide: "https://wms.example/wide"}, nil
}

type fakeHistory struct{ gotLimit int }

func (f *fakeHistory) ListByReference(ctx context.Context, reference string, limit int) ([]storage.Generation, error) {
	f.gotLimit = limit
	return []storage.Generation{{ID: "g1", Reference: reference, Kind: storage.KindDossier}}, nil
}

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	s := NewServer(deps, Config{RequestTimeout: 5 * time.Second}, logger.NewTestLogger(t))
	s.now = func() time.Time { return testNow }
	return s.Router()
}

func sampleBody(t *testing.T, extra map[string]interface{}) *bytes.Reader {
	t.Helper()
	body := map[string]interface{}{"dp": models.SampleDossier(testNow)}
	for k, v := range extra {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRenderPDF(t *testing.T) {
	dossiers := &fakeDossiers{}
	h := newTestServer(t, Deps{Dossiers: dossiers})

	req := httptest.NewRequest(http.MethodPost, "/api/dossiers/pdf", sampleBody(t, map[string]interface{}{
		"theme":     "ocean",
		"variant":   "full",
		"fetchMaps": false,
	}))
	rec := do(h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="DP-20260314-001.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", rec.Header().Get("X-Dossier-Degraded"))
	assert.Equal(t, "%PDF-1.4 dossier", rec.Body.String())
	assert.Equal(t, "ocean", dossiers.gotOpts.Theme)
	assert.Equal(t, "full", dossiers.gotOpts.Variant)
	assert.False(t, dossiers.gotFetch)
}

func TestRenderPDF_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed body", body: `{"dp":`, status: http.StatusBadRequest},
		{name: "missing dossier", body: `{"theme":"ocean"}`, status: http.StatusBadRequest},
		{name: "invalid dossier", body: `{"dp":{"reference":""}}`, status: http.StatusBadRequest},
		{name: "render failure", err: layout.ErrRenderFailed, status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, Deps{Dossiers: &fakeDossiers{renderErr: tt.err}})

			var body *bytes.Reader
			if tt.body != "" {
				body = bytes.NewReader([]byte(tt.body))
			} else {
				body = sampleBody(t, nil)
			}
			rec := do(h, httptest.NewRequest(http.MethodPost, "/api/dossiers/pdf", body))

			assert.Equal(t, tt.status, rec.Code)
			out := decodeJSON(t, rec)
			assert.Equal(t, false, out["success"])
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestFillCerfa(t *testing.T) {
	h := newTestServer(t, Deps{Dossiers: &fakeDossiers{}})

	rec := do(h, httptest.NewRequest(http.MethodPost, "/api/dossiers/cerfa", sampleBody(t, nil)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="cerfa_DP-20260314-001.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "X1,X2", rec.Header().Get("X-Cerfa-Skipped-Fields"))

	h = newTestServer(t, Deps{Dossiers: &fakeDossiers{cerfaErr: fmt.Errorf("%w: gone", cerfa.ErrTemplateMissing)}})
	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/dossiers/cerfa", sampleBody(t, nil)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSampleDossier(t *testing.T) {
	h := newTestServer(t, Deps{Dossiers: &fakeDossiers{}})

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/dossiers/sample", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var d models.Dossier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "DP-20260314-001", d.Reference)
}

func TestDescribePhotos(t *testing.T) {
	photos := &fakePhotos{out: &describephotos.Output{
		Notice: models.Notice{InitialState: "Maison existante"},
		Photos: 2,
	}}
	h := newTestServer(t, Deps{Dossiers: &fakeDossiers{}, Photos: photos})

	rec := do(h, httptest.NewRequest(http.MethodPost, "/api/photos/describe", sampleBody(t, map[string]interface{}{
		"model":     "qwen",
		"maxTokens": 2048,
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeJSON(t, rec)
	assert.Equal(t, true, out["success"])
	require.NotNil(t, photos.got)
	assert.Equal(t, "qwen", photos.got.Model)
	assert.Equal(t, 2048, photos.got.MaxTokens)
	assert.NotEmpty(t, photos.got.Dossier)

	photos.out = &describephotos.Output{Warning: "unparseable", RawOutput: "bla"}
	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/photos/describe", sampleBody(t, nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["success"])

	photos.out, photos.err = nil, fmt.Errorf("%w: deadline", vision.ErrVisionTimeout)
	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/photos/describe", sampleBody(t, nil)))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestTransformPhoto(t *testing.T) {
	h := newTestServer(t, Deps{Dossiers: &fakeDossiers{}, Transformer: fakeTransformer{}})

	body := bytes.NewReader([]byte(`{"image":"QkVGT1JF","prompt":"repeindre en blanc"}`))
	rec := do(h, httptest.NewRequest(http.MethodPost, "/api/photos/transform", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data:image/jpeg;base64,QUZURVI=", decodeJSON(t, rec)["image"])

	h = newTestServer(t, Deps{Dossiers: &fakeDossiers{}, Transformer: fakeTransformer{err: vision.ErrInvalidRequest}})
	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/photos/transform", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewMaps(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		maps   MapPreviewer
		status int
	}{
		{name: "ok", query: "?address=25+Chemin+des+Vignes&city=Brive", maps: fakeMaps{}, status: http.StatusOK},
		{name: "missing city", query: "?address=25+Chemin", maps: fakeMaps{}, status: http.StatusBadRequest},
		{name: "missing address", query: "?city=Brive", maps: fakeMaps{}, status: http.StatusBadRequest},
		{name: "unknown address", query: "?address=x&city=y", maps: fakeMaps{err: geo.ErrAddressNotFound}, status: http.StatusNotFound},
		{name: "geocoder down", query: "?address=x&city=y", maps: fakeMaps{err: geo.ErrMapFetchFailed}, status: http.StatusBadGateway},
		{name: "not configured", query: "?address=x&city=y", status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, Deps{Dossiers: &fakeDossiers{}, Maps: tt.maps})
			rec := do(h, httptest.NewRequest(http.MethodGet, "/api/maps/preview"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestDocument(t *testing.T) {
	dossiers := &fakeDossiers{docs: map[string]storage.Document{
		"abc": {Filename: "DP-1.pdf", ContentType: "application/pdf", Data: []byte("%PDF stored")},
	}}
	h := newTestServer(t, Deps{Dossiers: dossiers})

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/documents/abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF stored", rec.Body.String())
	assert.Equal(t, `attachment; filename="DP-1.pdf"`, rec.Header().Get("Content-Disposition"))

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerations(t *testing.T) {
	history := &fakeHistory{}
	h := newTestServer(t, Deps{Dossiers: &fakeDossiers{}, History: history})

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/dossiers/DP-1/generations?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, history.gotLimit)
	rows := decodeJSON(t, rec)["generations"].([]interface{})
	require.Len(t, rows, 1)
}

func TestHealthAndReady(t *testing.T) {
	checks := []Check{
		{Name: "postgres", Check: func(ctx context.Context) error { return nil }},
		{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
	}
	h := newTestServer(t, Deps{Dossiers: &fakeDossiers{}, Checks: checks})

	rec := do(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	out := decodeJSON(t, rec)
	assert.Equal(t, "not ready", out["status"])
	assert.Equal(t, "ok", out["checks"].(map[string]interface{})["postgres"])

	rec = do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	s := NewServer(Deps{Dossiers: &fakeDossiers{}}, Config{MaxBodyBytes: 16}, logger.NewNoOpLogger())
	rec := do(s.Router(), httptest.NewRequest(http.MethodPost, "/api/dossiers/pdf", sampleBody(t, nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
