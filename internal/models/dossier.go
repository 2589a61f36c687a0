// internal/models/dossier.go
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrDossierInvalid = errors.New("DOSSIER_INVALID")

// Dossier is the complete "déclaration préalable" record assembled by the
// wizard. It is treated as an immutable snapshot by every consumer.
type Dossier struct {
	Reference   string         `json:"reference"`
	CreatedAt   string         `json:"date_creation"`
	Applicant   Applicant      `json:"demandeur"`
	Plot        Plot           `json:"terrain"`
	Works       Works          `json:"travaux"`
	Aspect      ExteriorAspect `json:"aspect_exterieur"`
	Notice      Notice         `json:"notice"`
	PhotoPairs  []PhotoPair    `json:"photo_sets"`
	Plans       Plans          `json:"plans"`
	Attachments Attachments    `json:"pieces_jointes"`
	Cerfa       CerfaExtras    `json:"cerfa"`
}

type Applicant struct {
	Civility   string `json:"civilite"`
	LastName   string `json:"nom"`
	FirstName  string `json:"prenom"`
	BirthDate  string `json:"date_naissance"`
	BirthPlace string `json:"lieu_naissance"`
	Address    string `json:"adresse"`
	PostalCode string `json:"code_postal"`
	City       string `json:"ville"`
	Phone      string `json:"telephone"`
	Email      string `json:"email"`
	Role       string `json:"qualite"`
}

// FullName joins civility, first and last name, skipping empty parts.
func (a Applicant) FullName() string {
	return joinNonEmpty(" ", a.Civility, a.FirstName, a.LastName)
}

const (
	MapModeClassic  = "classique"
	MapModeDetailed = "detaille"
)

type Plot struct {
	Address          string `json:"adresse"`
	Locality         string `json:"lieu_dit"`
	PostalCode       string `json:"code_postal"`
	Municipality     string `json:"commune"`
	CadastralSection string `json:"section_cadastrale"`
	ParcelNumber     string `json:"numero_parcelle"`
	Area             Number `json:"superficie_terrain"`
	ZoningCode       string `json:"zone_plu"`
	InAllotment      bool   `json:"est_lotissement"`
	InProtectedZone  bool   `json:"est_zone_protegee"`
	HistoricMonument bool   `json:"est_monument_historique"`
	MapMode          string `json:"dp1_mode"`
}

// FullAddress is the single-line postal address of the plot.
func (p Plot) FullAddress() string {
	return joinNonEmpty(", ", p.Address, joinNonEmpty(" ", p.PostalCode, p.Municipality))
}

type Works struct {
	Type              string `json:"type_travaux"`
	Description       string `json:"description_courte"`
	FloorAreaExisting Number `json:"surface_plancher_existante"`
	FloorAreaCreated  Number `json:"surface_plancher_creee"`
	FootprintExisting Number `json:"emprise_au_sol_existante"`
	FootprintCreated  Number `json:"emprise_au_sol_creee"`
	HeightExisting    Number `json:"hauteur_existante"`
	HeightProjected   Number `json:"hauteur_projetee"`
	StartDate         string `json:"date_debut_prevue"`
	DurationMonths    Count  `json:"duree_travaux_mois"`
}

type ExteriorAspect struct {
	FacadeMaterialsExisting  string `json:"facade_materiaux_existants"`
	FacadeMaterialsProjected string `json:"facade_materiaux_projetes"`
	JoineryExisting          string `json:"menuiseries_existantes"`
	JoineryProjected         string `json:"menuiseries_projetees"`
	RoofMaterialsExisting    string `json:"toiture_materiaux_existants"`
	RoofMaterialsProjected   string `json:"toiture_materiaux_projetes"`
	FenceExisting            string `json:"cloture_existante"`
	FenceProjected           string `json:"cloture_projetee"`
	FacadeColor              string `json:"couleur_facade"`
	JoineryColor             string `json:"couleur_menuiseries"`
	ShutterColor             string `json:"couleur_volets"`
	RoofColor                string `json:"couleur_toiture"`
	OpeningsExisting         string `json:"nombre_ouvertures_existantes"`
	OpeningsProjected        string `json:"nombre_ouvertures_projetees"`
}

// Notice is the DP11 descriptive notice. Every field is free text that may
// come from the vision model or from the user.
type Notice struct {
	InitialState             string `json:"etat_initial"`
	ProjectedState           string `json:"etat_projete"`
	Justification            string `json:"justification"`
	LandscapeIntegration     string `json:"insertion_paysagere"`
	EnvironmentalImpact      string `json:"impact_environnemental"`
	DetailedChanges          string `json:"modifications_detaillees"`
	VolumeChange             string `json:"modification_volume"`
	FootprintChange          string `json:"modification_emprise_au_sol"`
	FloorAreaChange          string `json:"modification_surface_plancher"`
	EstimatedHeightExisting  string `json:"hauteur_estimee_existante"`
	EstimatedHeightProjected string `json:"hauteur_estimee_projete"`
	ArchitecturalCoherence   string `json:"coherence_architecturale"`
	RegulatoryRisks          string `json:"risques_reglementaires_potentiels"`
	OverallConfidence        string `json:"niveau_confiance_global"`
}

// ImageRef is a data URL, bare base64 payload, or an asset path such as
// "/images/avant 1.jpeg".
type ImageRef string

func (r ImageRef) Empty() bool {
	return strings.TrimSpace(string(r)) == ""
}

// PhotoPair is one observation point. The wizard keeps uploaded payloads in
// the base64 fields and server-side files in the path fields.
type PhotoPair struct {
	Label             string   `json:"label"`
	BeforePath        ImageRef `json:"chemin_avant"`
	AfterPath         ImageRef `json:"chemin_apres"`
	BeforeDescription string   `json:"description_avant"`
	AfterDescription  string   `json:"description_apres"`
	BeforeData        ImageRef `json:"base64_avant,omitempty"`
	AfterData         ImageRef `json:"base64_apres,omitempty"`
}

// Before prefers the inline payload over the stored path.
func (p PhotoPair) Before() ImageRef {
	if !p.BeforeData.Empty() {
		return p.BeforeData
	}
	return p.BeforePath
}

func (p PhotoPair) After() ImageRef {
	if !p.AfterData.Empty() {
		return p.AfterData
	}
	return p.AfterPath
}

const (
	PlanModeUpload = "upload"
	PlanModeAI     = "ai"
)

type Plans struct {
	SitePlanMode   string   `json:"dp2_mode"`
	SitePlan       ImageRef `json:"dp2_base64"`
	SectionMode    string   `json:"dp3_mode"`
	Section        ImageRef `json:"dp3_base64"`
	ElevationsMode string   `json:"dp4_mode"`
	Elevations     ImageRef `json:"dp4_base64"`
}

type Attachment struct {
	Name     string `json:"nom"`
	Provided bool   `json:"fourni"`
}

// Attachments maps a pièce code (DP1, DP2, ...) to its checklist entry.
type Attachments map[string]Attachment

type CoApplicant struct {
	LastName   string `json:"nom"`
	FirstName  string `json:"prenom"`
	Address    string `json:"adresse"`
	PostalCode string `json:"code_postal"`
	City       string `json:"ville"`
	Phone      string `json:"telephone,omitempty"`
	Email      string `json:"email,omitempty"`
	Civility   string `json:"civilite,omitempty"`
}

type Amenities struct {
	Pool      bool `json:"piscine"`
	Garage    bool `json:"garage"`
	Veranda   bool `json:"veranda"`
	Shed      bool `json:"abri"`
	Extension bool `json:"extension"`
	Raising   bool `json:"surelevation"`
	Fence     bool `json:"cloture"`
}

type Taxation struct {
	TaxableAreaExisting Number `json:"surface_taxable_existante"`
	TaxableAreaCreated  Number `json:"surface_taxable_creee"`
	ParkingCreated      Count  `json:"stationnement_cree"`
}

type Architect struct {
	Engaged bool   `json:"recours"`
	Name    string `json:"nom"`
	Number  string `json:"numero"`
}

type CerfaExtras struct {
	SignatureDate  string       `json:"date_signature"`
	SignaturePlace string       `json:"lieu_signature"`
	CompanyName    string       `json:"denomination_sociale,omitempty"`
	SIRET          string       `json:"siret,omitempty"`
	NatureDetails  string       `json:"nature_precisions,omitempty"`
	CoApplicant    *CoApplicant `json:"co_demandeur,omitempty"`
	Amenities      *Amenities   `json:"amenagements,omitempty"`
	Taxation       *Taxation    `json:"fiscalite,omitempty"`
	Architect      *Architect   `json:"architecte,omitempty"`
}

// Validate rejects records that cannot even name the output document.
func (d *Dossier) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: dossier is required", ErrDossierInvalid)
	}
	var missing []string
	if strings.TrimSpace(d.Reference) == "" {
		missing = append(missing, "reference")
	}
	if strings.TrimSpace(d.CreatedAt) == "" {
		missing = append(missing, "date_creation")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrDossierInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// EffectiveMapMode resolves the DP1 rendering mode: explicit override, then
// the plot's own setting, then the detailed grid.
func (d *Dossier) EffectiveMapMode(override string) string {
	for _, m := range []string{override, d.Plot.MapMode} {
		if m == MapModeClassic || m == MapModeDetailed {
			return m
		}
	}
	return MapModeDetailed
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStem turns a reference into a name safe for attachments and storage
// keys. It returns fallback when nothing usable is left.
func FileStem(reference, fallback string) string {
	stem := strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(reference), "_"), "._")
	if stem == "" {
		return fallback
	}
	return stem
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
