package vision

import (
	"strconv"
	"strings"

	"dossier-workers/internal/models"
)

const (
	systemPrompt        = "Tu es un expert en urbanisme français. Réponds UNIQUEMENT en JSON valide. Commence par { et finis par }."
	systemPromptNoThink = "/no_think\nTu es un expert en urbanisme français. Réponds UNIQUEMENT en JSON."
	noThinkModelAlias   = "nemotron"
)

const promptTemplate = `Analyse ces photos avec une précision architecturale et réglementaire maximale.

INFORMATIONS DU PROJET :
- Adresse : {adresse}
- Commune : {commune}
- Zone PLU : {zone}
- Type : {type}
- Surface déclarée : {surface} m²

MISSION CRUCIALE :
Compare minutieusement l'avant et l'après.
Identifie CHAQUE modification physique visible.
Distingue clairement :
- Modifications esthétiques (couleur, texture, finition)
- Modifications géométriques (dimensions, hauteur, volume)
- Modifications structurelles (ouvertures créées/supprimées, extensions, démolitions)

Ignore totalement les éléments temporaires (météo, végétation, véhicules, ombres).

Détecte explicitement :
- Création, suppression ou modification d'ouvertures
- Modification du volume général
- Modification de l'emprise au sol
- Modification estimée de la surface de plancher

Évalue la cohérence architecturale avec un environnement résidentiel typique d'une zone {zone}.
Signale tout risque réglementaire potentiel.
Si un élément n'est pas clairement identifiable visuellement, indique "non déterminable visuellement".
Pour chaque détection matérielle ou colorimétrique, indique un niveau de confiance (faible, moyen, élevé).

Retourne un objet JSON PLAT avec EXACTEMENT ces clés au premier niveau :
{keys}

RÈGLES STRICTES :
- Réponds UNIQUEMENT avec le JSON.
- PAS de sous-objets.
- COMMENCE par { et FINIS par }.
- PAS de texte avant ou après.`

// DefaultPrompt builds the analysis prompt for a dossier's photos.
func DefaultPrompt(d *models.Dossier) string {
	zone := d.Plot.ZoningCode
	if zone == "" {
		zone = "non renseignée"
	}

	var keys strings.Builder
	keys.WriteString("{\n")
	for i, f := range knownFields {
		keys.WriteString(`  "` + f.key + `": "..."`)
		if i < len(knownFields)-1 {
			keys.WriteString(",")
		}
		keys.WriteString("\n")
	}
	keys.WriteString("}")

	return strings.NewReplacer(
		"{adresse}", d.Plot.Address,
		"{commune}", d.Plot.Municipality,
		"{zone}", zone,
		"{type}", d.Works.Type,
		"{surface}", strconv.FormatFloat(d.Works.FloorAreaExisting.Float(), 'f', -1, 64),
		"{keys}", keys.String(),
	).Replace(promptTemplate)
}

func systemPromptFor(alias string) string {
	if alias == noThinkModelAlias {
		return systemPromptNoThink
	}
	return systemPrompt
}
