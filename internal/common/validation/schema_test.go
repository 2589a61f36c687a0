package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDossier(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		valid      bool
		wantFields []string
	}{
		{
			name:    "minimal",
			payload: `{"reference":"DP-1","date_creation":"01/01/2025"}`,
			valid:   true,
		},
		{
			name: "wizard payload with nulls",
			payload: `{"reference":"DP-1","date_creation":"01/01/2025",
				"terrain":{"superficie_terrain":850,"dp1_mode":"classique","est_lotissement":null},
				"travaux":{"surface_plancher_creee":null,"duree_travaux_mois":3},
				"photo_sets":[{"label":"Façade","chemin_avant":"/images/avant 1.jpeg","chemin_apres":null}],
				"plans":{"dp2_mode":"ai"},
				"pieces_jointes":{"DP1":{"nom":"Plan de situation","fourni":false}}}`,
			valid: true,
		},
		{
			name:       "bad types",
			payload:    `{"reference":"DP-1","date_creation":"x","terrain":{"superficie_terrain":true},"plans":{"dp3_mode":"scan"}}`,
			wantFields: []string{"plans.dp3_mode", "terrain.superficie_terrain"},
		},
		{
			name: "measures typed as text",
			payload: `{"reference":"DP-1","date_creation":"01/01/2025",
				"terrain":{"superficie_terrain":"850"},
				"travaux":{"surface_plancher_existante":"","hauteur_projetee":"5,5","duree_travaux_mois":"3"}}`,
			valid: true,
		},
		{
			name:       "negative area",
			payload:    `{"reference":"DP-1","date_creation":"x","travaux":{"hauteur_projetee":-2}}`,
			wantFields: []string{"travaux.hauteur_projetee"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateDossier([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid, res.Messages())

			var fields []string
			for _, e := range res.Errors {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidateDossier_MissingReference(t *testing.T) {
	res, err := ValidateDossier([]byte(`{"date_creation":"01/01/2025"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "required", res.Errors[0].Code)
	assert.Contains(t, res.Errors[0].Message, "reference")
}

func TestValidateDossier_GoValue(t *testing.T) {
	res, err := ValidateDossier(map[string]interface{}{"reference": "DP-1", "date_creation": "01/01/2025"})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidateDossier_MalformedJSON(t *testing.T) {
	_, err := ValidateDossier([]byte(`{"reference":`))
	assert.Error(t, err)
}
