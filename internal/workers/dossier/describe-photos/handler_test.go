// internal/workers/dossier/describe-photos/handler_test.go
package describephotos

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/models"
	"dossier-workers/internal/vision"
)

type fakeDescriber struct {
	reply string
	err   error
	got   vision.Request
}

func (f *fakeDescriber) Describe(ctx context.Context, req vision.Request) (*vision.Description, string, error) {
	f.got = req
	if f.err != nil {
		return nil, f.reply, f.err
	}
	desc, err := vision.ParseDescription(f.reply)
	return desc, f.reply, err
}

func dossierWithPhotos(t *testing.T, pairs int) json.RawMessage {
	t.Helper()
	d := models.Dossier{Reference: "DP-1", CreatedAt: "01/01/2025", Plot: models.Plot{Address: "1 rue", Municipality: "Tulle", ZoningCode: "UA"}}
	for i := 0; i < pairs; i++ {
		d.PhotoPairs = append(d.PhotoPairs, models.PhotoPair{
			BeforeData: "data:image/jpeg;base64,QUFB",
			AfterPath:  "/images/apres.jpeg",
		})
	}
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	return raw
}

func TestHandler_Execute_Success(t *testing.T) {
	describer := &fakeDescriber{reply: "```json\n{\"etat_initial\":\"Maison en pierre\",\"couleur_volets\":\"vert\",\"materiaux\":\"granit\"}\n```"}
	h := NewHandler(LoadConfig(), describer, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Dossier: dossierWithPhotos(t, 2), Model: "qwen", Temperature: 0.2})
	require.NoError(t, err)

	assert.Equal(t, "Maison en pierre", out.Notice.InitialState)
	assert.Equal(t, "vert", out.Aspect.ShutterColor)
	assert.Equal(t, map[string]string{"materiaux": "granit"}, out.Extra)
	assert.Equal(t, []string{"couleur_volets", "etat_initial"}, out.FilledKeys)
	assert.Equal(t, 4, out.Photos)
	assert.Empty(t, out.Warning)

	assert.Equal(t, "qwen", describer.got.Model)
	assert.Equal(t, 0.2, describer.got.Temperature)
	assert.Contains(t, describer.got.Prompt, "- Zone PLU : UA")
	assert.Len(t, describer.got.Before, 2)
	assert.Equal(t, models.ImageRef("/images/apres.jpeg"), describer.got.After[0])
}

func TestHandler_Execute_CustomPromptAndLimit(t *testing.T) {
	describer := &fakeDescriber{reply: `{}`}
	cfg := LoadConfig()
	cfg.MaxPhotos = 4
	h := NewHandler(cfg, describer, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Dossier: dossierWithPhotos(t, 5), Prompt: "Décris"})
	require.NoError(t, err)
	assert.Equal(t, "Décris", describer.got.Prompt)
	assert.Equal(t, 4, out.Photos)
	assert.Empty(t, out.FilledKeys)
}

func TestHandler_Execute_MalformedOutput(t *testing.T) {
	h := NewHandler(LoadConfig(), &fakeDescriber{reply: "Je ne sais pas"}, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Dossier: dossierWithPhotos(t, 1)})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Warning)
	assert.Equal(t, "Je ne sais pas", out.RawOutput)
	assert.Equal(t, models.Notice{}, out.Notice)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   *Input
		err     error
		wantErr error
	}{
		{name: "no photos", input: &Input{Dossier: dossierWithPhotos(t, 0)}, wantErr: models.ErrDossierInvalid},
		{name: "invalid dossier", input: &Input{Dossier: json.RawMessage(`{}`)}, wantErr: models.ErrDossierInvalid},
		{name: "model timeout", input: &Input{Dossier: dossierWithPhotos(t, 1)}, err: vision.ErrVisionTimeout, wantErr: vision.ErrVisionTimeout},
		{name: "model failure", input: &Input{Dossier: dossierWithPhotos(t, 1)}, err: vision.ErrVisionFailed, wantErr: vision.ErrVisionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(LoadConfig(), &fakeDescriber{err: tt.err}, nil, logger.NewTestLogger(t))
			_, err := h.Execute(context.Background(), tt.input)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
