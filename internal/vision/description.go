package vision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"dossier-workers/internal/models"
)

// Description is the model's structured reading of the before/after photos.
// Keys outside the notice and aspect vocabularies land in Extra.
type Description struct {
	Notice models.Notice         `json:"notice"`
	Aspect models.ExteriorAspect `json:"aspect"`
	Extra  map[string]string     `json:"extra,omitempty"`
}

type field struct {
	key string
	ptr func(*Description) *string
}

var knownFields = []field{
	{"etat_initial", func(d *Description) *string { return &d.Notice.InitialState }},
	{"etat_projete", func(d *Description) *string { return &d.Notice.ProjectedState }},
	{"justification", func(d *Description) *string { return &d.Notice.Justification }},
	{"insertion_paysagere", func(d *Description) *string { return &d.Notice.LandscapeIntegration }},
	{"impact_environnemental", func(d *Description) *string { return &d.Notice.EnvironmentalImpact }},
	{"modifications_detaillees", func(d *Description) *string { return &d.Notice.DetailedChanges }},
	{"modification_volume", func(d *Description) *string { return &d.Notice.VolumeChange }},
	{"modification_emprise_au_sol", func(d *Description) *string { return &d.Notice.FootprintChange }},
	{"modification_surface_plancher", func(d *Description) *string { return &d.Notice.FloorAreaChange }},
	{"hauteur_estimee_existante", func(d *Description) *string { return &d.Notice.EstimatedHeightExisting }},
	{"hauteur_estimee_projete", func(d *Description) *string { return &d.Notice.EstimatedHeightProjected }},
	{"coherence_architecturale", func(d *Description) *string { return &d.Notice.ArchitecturalCoherence }},
	{"risques_reglementaires_potentiels", func(d *Description) *string { return &d.Notice.RegulatoryRisks }},
	{"niveau_confiance_global", func(d *Description) *string { return &d.Notice.OverallConfidence }},

	{"facade_materiaux_existants", func(d *Description) *string { return &d.Aspect.FacadeMaterialsExisting }},
	{"facade_materiaux_projetes", func(d *Description) *string { return &d.Aspect.FacadeMaterialsProjected }},
	{"menuiseries_existantes", func(d *Description) *string { return &d.Aspect.JoineryExisting }},
	{"menuiseries_projetees", func(d *Description) *string { return &d.Aspect.JoineryProjected }},
	{"toiture_materiaux_existants", func(d *Description) *string { return &d.Aspect.RoofMaterialsExisting }},
	{"toiture_materiaux_projetes", func(d *Description) *string { return &d.Aspect.RoofMaterialsProjected }},
	{"cloture_existante", func(d *Description) *string { return &d.Aspect.FenceExisting }},
	{"cloture_projetee", func(d *Description) *string { return &d.Aspect.FenceProjected }},
	{"couleur_facade", func(d *Description) *string { return &d.Aspect.FacadeColor }},
	{"couleur_menuiseries", func(d *Description) *string { return &d.Aspect.JoineryColor }},
	{"couleur_volets", func(d *Description) *string { return &d.Aspect.ShutterColor }},
	{"couleur_toiture", func(d *Description) *string { return &d.Aspect.RoofColor }},
	{"nombre_ouvertures_existantes", func(d *Description) *string { return &d.Aspect.OpeningsExisting }},
	{"nombre_ouvertures_projetees", func(d *Description) *string { return &d.Aspect.OpeningsProjected }},
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON returns the JSON object embedded in a model reply: the first
// fenced block, else the text between the outermost braces.
func ExtractJSON(raw string) string {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// ParseDescription decodes a model reply. Missing keys stay empty; only a
// reply without a decodable JSON object fails.
func ParseDescription(raw string) (*Description, error) {
	var values map[string]interface{}
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputInvalid, err)
	}

	d := &Description{}
	known := make(map[string]bool, len(knownFields))
	for _, f := range knownFields {
		known[f.key] = true
		if s := stringify(values[f.key]); s != "" {
			*f.ptr(d) = s
		}
	}
	for key, v := range values {
		if known[key] {
			continue
		}
		if s := stringify(v); s != "" {
			if d.Extra == nil {
				d.Extra = map[string]string{}
			}
			d.Extra[key] = s
		}
	}
	return d, nil
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "Oui"
		}
		return "Non"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// MergeInto copies every non-empty value onto the dossier.
func (d *Description) MergeInto(dossier *models.Dossier) {
	target := &Description{Notice: dossier.Notice, Aspect: dossier.Aspect}
	for _, f := range knownFields {
		if v := *f.ptr(d); v != "" {
			*f.ptr(target) = v
		}
	}
	dossier.Notice = target.Notice
	dossier.Aspect = target.Aspect
}

// FilledKeys lists the vocabulary keys the model answered, sorted.
func (d *Description) FilledKeys() []string {
	var keys []string
	for _, f := range knownFields {
		if *f.ptr(d) != "" {
			keys = append(keys, f.key)
		}
	}
	sort.Strings(keys)
	return keys
}
