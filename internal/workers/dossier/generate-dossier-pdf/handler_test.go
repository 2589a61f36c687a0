// internal/workers/dossier/generate-dossier-pdf/handler_test.go
package generatedossierpdf

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/dossier"
	"dossier-workers/internal/layout"
	"dossier-workers/internal/models"
	"dossier-workers/internal/storage"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeGenerator struct {
	gotOpts  models.RenderOptions
	gotMaps  bool
	response *dossier.Stored
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, d *models.Dossier, opts models.RenderOptions, fetchMaps bool) (*dossier.Stored, error) {
	f.gotOpts, f.gotMaps = opts, fetchMaps
	return f.response, f.err
}

func sampleJSON(t *testing.T) json.RawMessage {
	t.Helper()
	d := models.SampleDossier(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	return raw
}

func boolPtr(b bool) *bool { return &b }

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	tests := []struct {
		name          string
		input         *Input
		wantFetchMaps bool
	}{
		{
			name:          "fetch maps by default",
			input:         &Input{Dossier: sampleJSON(t), Options: models.RenderOptions{Variant: "full"}},
			wantFetchMaps: true,
		},
		{
			name:          "maps disabled",
			input:         &Input{Dossier: sampleJSON(t), FetchMaps: boolPtr(false)},
			wantFetchMaps: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{response: &dossier.Stored{
				DocumentKey: "dossier:pdf:1",
				Filename:    "DP-20250601-001.pdf",
				PageCount:   9,
				Bytes:       1024,
				Degraded:    []string{},
			}}
			h := NewHandler(LoadConfig(), gen, nil, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, "dossier:pdf:1", out.DocumentKey)
			assert.Equal(t, 9, out.PageCount)
			assert.Equal(t, tt.wantFetchMaps, gen.gotMaps)
			assert.Equal(t, tt.input.Options, gen.gotOpts)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   *Input
		genErr  error
		wantErr error
	}{
		{name: "missing dossier", input: &Input{}, wantErr: models.ErrDossierInvalid},
		{name: "schema violation", input: &Input{Dossier: json.RawMessage(`{"reference":"DP-1"}`)}, wantErr: models.ErrDossierInvalid},
		{name: "render failure", input: &Input{Dossier: sampleJSON(t)}, genErr: layout.ErrRenderFailed, wantErr: layout.ErrRenderFailed},
		{name: "storage failure", input: &Input{Dossier: sampleJSON(t)}, genErr: storage.ErrStorageFailed, wantErr: storage.ErrStorageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(LoadConfig(), &fakeGenerator{err: tt.genErr}, nil, logger.NewTestLogger(t))
			_, err := h.Execute(context.Background(), tt.input)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

// ==========================
// End-to-end through the real engine
// ==========================

func TestHandler_Execute_RendersAndStores(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(`INSERT INTO dossier_generations`).WillReturnResult(sqlmock.NewResult(1, 1))

	log := logger.NewTestLogger(t)
	store := storage.NewPDFStore(rdb, time.Hour)
	svc := dossier.NewService(dossier.Deps{
		Renderer: layout.NewEngine(layout.Config{AssetRoot: t.TempDir(), MaxImagePixels: 1_000_000}, log),
		Store:    store,
		Log:      storage.NewGenerationLog(db),
	}, dossier.Defaults{}, log)

	h := NewHandler(LoadConfig(), svc, nil, log)
	out, err := h.Execute(context.Background(), &Input{Dossier: sampleJSON(t)})
	require.NoError(t, err)

	assert.Equal(t, "DP-20250601-001.pdf", out.Filename)
	assert.Greater(t, out.PageCount, 1)
	assert.NotEmpty(t, out.Degraded, "photo assets are missing from the asset root")

	doc, err := store.Get(context.Background(), out.DocumentKey)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(doc.Data[:5]))
	assert.Equal(t, out.Bytes, len(doc.Data))
	assert.NoError(t, mock.ExpectationsWereMet())
}
