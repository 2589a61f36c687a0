// internal/layout/assembler.go
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/models"
)

var (
	ErrRenderFailed        = errors.New("PDF_RENDER_FAILED")
	ErrSerializationFailed = errors.New("PDF_SERIALIZATION_FAILED")
)

// Config holds engine-wide settings.
type Config struct {
	AssetRoot      string
	MaxImagePixels int
	Compress       bool
}

// Document is one rendered dossier.
type Document struct {
	Bytes     []byte
	Filename  string
	PageCount int
	// Degraded lists every placeholder or error caption substituted while
	// rendering, as "kind: detail".
	Degraded []string
}

// Engine renders dossiers. It holds no per-document state and is safe for
// concurrent use.
type Engine struct {
	config Config
	log    logger.Logger
	now    func() time.Time
}

func NewEngine(config Config, log logger.Logger) *Engine {
	return &Engine{config: config, log: log, now: time.Now}
}

// Render lays out d and serialises the PDF. maps may be nil. Only invalid
// input and serialisation failures are returned as errors; everything else
// degrades inside the document.
func (e *Engine) Render(d *models.Dossier, opts models.RenderOptions, maps *models.MapSet) (*Document, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	opts = opts.Normalize()

	log := e.log.WithFields(map[string]interface{}{
		"reference": d.Reference,
		"variant":   opts.Variant,
		"theme":     opts.Theme,
	})
	c := newRenderContext(opts, d, NewImageResolver(e.config.AssetRoot, e.config.MaxImagePixels), e.config.Compress, log)
	c.pdf.SetTitle("Déclaration Préalable de Travaux - "+d.Reference, true)
	c.pdf.SetAuthor(d.Applicant.FullName(), true)
	c.pdf.SetCreator("dossier-workers", false)
	c.pdf.SetCreationDate(e.now())

	c.NewPage()
	drawCover(c, d)
	drawApplicant(c, d)
	drawPlot(c, d)
	drawWorks(c, d)
	drawAttachmentList(c, d)

	c.NewPage()
	drawAspect(c, d)
	drawNotice(c, d)

	if opts.Variant == models.VariantFull {
		drawSituationPage(c, d, d.EffectiveMapMode(opts.MapMode), maps)
		drawSitePlanPage(c, d, maps)
		drawPlanPage(c, "DP3 - PLAN EN COUPE", "Plan en coupe", d.Plans.SectionMode, d.Plans.Section,
			"Joindre un plan en coupe précisant l'implantation de la construction par rapport au profil du terrain (DP3).")
		drawPlanPage(c, "DP4 - PLAN DES FAÇADES ET DES TOITURES", "Plan des façades et des toitures", d.Plans.ElevationsMode, d.Plans.Elevations,
			"Joindre les plans des façades et des toitures faisant apparaître l'état initial et l'état futur (DP4).")
		drawInsertionPage(c, d)
	}

	drawPhotoPages(c, d)

	if c.pdf.Err() {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, c.pdf.Error())
	}
	pages := c.PageCount()
	var buf bytes.Buffer
	if err := c.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}

	log.Info("Dossier rendered", map[string]interface{}{
		"pages":    pages,
		"bytes":    buf.Len(),
		"degraded": len(c.degraded),
	})

	return &Document{
		Bytes:     buf.Bytes(),
		Filename:  Filename(d.Reference),
		PageCount: pages,
		Degraded:  c.degraded,
	}, nil
}

// Filename derives the attachment name from a dossier reference.
func Filename(reference string) string {
	return models.FileStem(reference, "dossier") + ".pdf"
}

func drawCover(c *RenderContext, d *models.Dossier) {
	FlowText(c, "Déclaration Préalable de Travaux", TextStyle{
		Style: "B", Size: 22, Color: c.Theme.Primary,
		X: c.Geo.Margin, MaxWidth: c.ContentWidth(), LineSpacing: 8, Center: true,
	})
	FlowText(c, "Référence du dossier : "+d.Reference, TextStyle{
		Size: 12, Color: c.Theme.BodyText,
		X: c.Geo.Margin, MaxWidth: c.ContentWidth(), Center: true,
	})
	c.Y += 28
}

func drawApplicant(c *RenderContext, d *models.Dossier) {
	a := d.Applicant
	SectionHeader(c, "1 - IDENTITÉ DU DEMANDEUR")
	Field(c, "Civilité / Nom :", a.FullName())
	Field(c, "Qualité :", a.Role)
	Field(c, "Adresse :", a.Address)
	Field(c, "Code postal / Ville :", strings.TrimSpace(a.PostalCode+" "+a.City))
	Field(c, "Email :", a.Email)
	Field(c, "Téléphone :", a.Phone)
}

func drawPlot(c *RenderContext, d *models.Dossier) {
	p := d.Plot
	SectionHeader(c, "2 - LOCALISATION DU TERRAIN")
	Field(c, "Adresse :", p.Address)
	if p.Locality != "" {
		Field(c, "Lieu-dit :", p.Locality)
	}
	Field(c, "Code postal / Ville :", strings.TrimSpace(p.PostalCode+" "+p.Municipality))
	Field(c, "Parcelle cadastrale :", parcelLabel(p))
	Field(c, "Superficie totale :", FormatArea(p.Area.Float()))
	Field(c, "Règlement (Zone) :", p.ZoningCode)
	Field(c, "Spécificités :", plotSpecifics(p))
}

func parcelLabel(p models.Plot) string {
	if p.CadastralSection == "" && p.ParcelNumber == "" {
		return ""
	}
	return fmt.Sprintf("Section %s N° %s", OrPlaceholder(p.CadastralSection), OrPlaceholder(p.ParcelNumber))
}

func plotSpecifics(p models.Plot) string {
	var parts []string
	if p.InAllotment {
		parts = append(parts, "En lotissement.")
	}
	if p.InProtectedZone {
		parts = append(parts, "En secteur protégé.")
	}
	if p.HistoricMonument {
		parts = append(parts, "Abords de monument historique.")
	}
	if len(parts) == 0 {
		return "Aucune"
	}
	return strings.Join(parts, " ")
}

func drawWorks(c *RenderContext, d *models.Dossier) {
	w := d.Works
	SectionHeader(c, "3 - NATURE DES TRAVAUX")
	Field(c, "Type de travaux :", w.Type)
	Field(c, "Description courte :", w.Description)
	Field(c, "Surface existante :", fmt.Sprintf("%s (Plancher) / %s (Emprise)", FormatArea(w.FloorAreaExisting.Float()), FormatArea(w.FootprintExisting.Float())))
	Field(c, "Surface modifiée :", fmt.Sprintf("Créée : %s (Plancher) / %s (Emprise)", FormatArea(w.FloorAreaCreated.Float()), FormatArea(w.FootprintCreated.Float())))
	Field(c, "Hauteur bâtiment :", fmt.Sprintf("Existante : %s / Projetée : %s", FormatLength(w.HeightExisting.Float()), FormatLength(w.HeightProjected.Float())))
	Field(c, "Début des travaux :", w.StartDate)
	Field(c, "Durée prévue :", fmt.Sprintf("%d mois", w.DurationMonths))
}

func drawAttachmentList(c *RenderContext, d *models.Dossier) {
	SectionHeader(c, "PIÈCES JOINTES AU DOSSIER")
	if len(d.Attachments) == 0 {
		Field(c, "Pièces :", "")
		return
	}
	for _, code := range sortedCodes(d.Attachments) {
		a := d.Attachments[code]
		status := "à joindre"
		if a.Provided {
			status = "fournie"
		}
		Field(c, code+" :", fmt.Sprintf("%s (%s)", OrPlaceholder(a.Name), status))
	}
}

// sortedCodes orders pièce codes by their numeric suffix so DP11 follows DP8.
func sortedCodes(a models.Attachments) []string {
	codes := make([]string, 0, len(a))
	for code := range a {
		codes = append(codes, code)
	}
	num := func(code string) int {
		n, err := strconv.Atoi(strings.TrimLeft(code, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"))
		if err != nil {
			return 1 << 30
		}
		return n
	}
	sort.Slice(codes, func(i, j int) bool {
		ni, nj := num(codes[i]), num(codes[j])
		if ni != nj {
			return ni < nj
		}
		return codes[i] < codes[j]
	})
	return codes
}

func drawAspect(c *RenderContext, d *models.Dossier) {
	a := d.Aspect
	SectionHeader(c, "4 - ASPECT EXTÉRIEUR DES CONSTRUCTIONS")

	SubHeading(c, "Ouvertures et Menuiseries")
	Field(c, "Nombre existant :", a.OpeningsExisting)
	Field(c, "Nombre projeté :", a.OpeningsProjected)
	Field(c, "Types existants :", a.JoineryExisting)
	Field(c, "Types projetés :", a.JoineryProjected)

	SubHeading(c, "Façades et Toitures")
	Field(c, "Façade existante :", a.FacadeMaterialsExisting)
	Field(c, "Façade projetée :", a.FacadeMaterialsProjected)
	Field(c, "Toiture existante :", a.RoofMaterialsExisting)
	Field(c, "Toiture projetée :", a.RoofMaterialsProjected)
	Field(c, "Clôture existante :", a.FenceExisting)
	Field(c, "Clôture projetée :", a.FenceProjected)

	SubHeading(c, "Palette de couleurs")
	Field(c, "Couleur Façade :", a.FacadeColor)
	Field(c, "Couleur Menuiseries :", a.JoineryColor)
	Field(c, "Couleur Volets :", a.ShutterColor)
	Field(c, "Couleur Toiture :", a.RoofColor)
}

func drawNotice(c *RenderContext, d *models.Dossier) {
	n := d.Notice
	SectionHeader(c, "5 - NOTICE DESCRIPTIVE DU PROJET (DP11)")

	Paragraph(c, "5.1 - État initial du terrain et de la construction", n.InitialState)
	Paragraph(c, "5.2 - Description du projet", n.ProjectedState)
	Paragraph(c, "5.3 - Analyse technique estimée", n.DetailedChanges)
	Field(c, "Surface plancher :", n.FloorAreaChange)
	Field(c, "Emprise au sol :", n.FootprintChange)
	Field(c, "Volume :", n.VolumeChange)
	Field(c, "Hauteur existante :", n.EstimatedHeightExisting)
	Field(c, "Hauteur projetée :", n.EstimatedHeightProjected)

	c.Y += 10
	SubHeading(c, "5.4 - Analyse réglementaire")
	Paragraph(c, fmt.Sprintf("Cohérence architecturale (Zone %s) :", OrPlaceholder(d.Plot.ZoningCode)), n.ArchitecturalCoherence)
	Paragraph(c, "Risques réglementaires potentiels :", n.RegulatoryRisks)
	Paragraph(c, "Niveau de confiance IA :", n.OverallConfidence)

	Paragraph(c, "5.5 - Justification du projet", n.Justification)
	Paragraph(c, "5.6 - Insertion paysagère", n.LandscapeIntegration)
	Paragraph(c, "5.7 - Impact environnemental", n.EnvironmentalImpact)
}

const placeholderHeight = 320.0

func drawSituationPage(c *RenderContext, d *models.Dossier, mode string, maps *models.MapSet) {
	c.NewPage()
	SectionHeader(c, "DP1 - PLAN DE SITUATION")
	address := d.Plot.FullAddress()

	wide, hasWide := maps.Get(models.MapWide)
	cadastral, hasCadastral := maps.Get(models.MapCadastral)
	closeUp, hasClose := maps.Get(models.MapClose)

	switch {
	case mode == models.MapModeClassic && hasWide:
		DrawSingleMap(c, wide, "Vue large – plan IGN", address, c.Remaining()-110)
	case mode == models.MapModeDetailed && (hasWide || hasCadastral || hasClose):
		var street models.ImageRef
		if len(d.PhotoPairs) > 0 {
			street = d.PhotoPairs[0].Before()
		}
		quads := [4]Quadrant{
			{Caption: "Vue large – plan IGN", Data: wide.Data, IsMap: true},
			{Caption: "Plan cadastral", Data: cadastral.Data, IsMap: true},
			{Caption: "Vue rapprochée – photo aérienne", Data: closeUp.Data, IsMap: true},
			{Caption: "Vue depuis la rue", Ref: street},
		}
		DrawMapQuadrants(c, quads, address, c.ContentWidth()*2/3+4*quadrantPadding)
	default:
		PlaceholderBox(c, "Plan de situation non disponible",
			"Joindre un plan de situation permettant de localiser le terrain dans la commune (DP1).", placeholderHeight)
		c.degrade("page", "DP1", nil)
	}

	Field(c, "Adresse du terrain :", address)
	Field(c, "Références cadastrales :", parcelLabel(d.Plot))
}

func planModeLabel(mode string) string {
	if mode == models.PlanModeAI {
		return "généré par IA"
	}
	return "document fourni"
}

func drawSitePlanPage(c *RenderContext, d *models.Dossier, maps *models.MapSet) {
	c.NewPage()
	SectionHeader(c, "DP2 - PLAN DE MASSE")
	if !d.Plans.SitePlan.Empty() {
		DrawImageWithTitle(c, ImageSlot{Ref: d.Plans.SitePlan, Title: "Plan de masse (" + planModeLabel(d.Plans.SitePlanMode) + ")"}, "", 0)
		return
	}
	if site, ok := maps.Get(models.MapSite); ok {
		DrawSingleMap(c, site, "Vue aérienne de la parcelle", d.Plot.FullAddress(), c.Remaining()-60)
		return
	}
	PlaceholderBox(c, "Plan de masse à joindre",
		"Joindre un plan de masse coté dans les trois dimensions des constructions à édifier ou à modifier (DP2).", placeholderHeight)
	c.degrade("page", "DP2", nil)
}

func drawPlanPage(c *RenderContext, header, title, mode string, ref models.ImageRef, instruction string) {
	c.NewPage()
	SectionHeader(c, header)
	if DrawImageWithTitle(c, ImageSlot{Ref: ref, Title: title + " (" + planModeLabel(mode) + ")"}, "", 0) {
		return
	}
	PlaceholderBox(c, title+" à joindre", instruction, placeholderHeight)
	c.degrade("page", strings.SplitN(header, " ", 2)[0], nil)
}

func drawInsertionPage(c *RenderContext, d *models.Dossier) {
	c.NewPage()
	SectionHeader(c, "DP6 - DOCUMENT GRAPHIQUE D'INSERTION")
	for _, pair := range d.PhotoPairs {
		if after := pair.After(); !after.Empty() {
			DrawImageWithTitle(c, ImageSlot{Ref: after, Title: "Insertion du projet - " + OrPlaceholder(pair.Label)}, pair.AfterDescription, 0)
			return
		}
	}
	PlaceholderBox(c, "Document graphique d'insertion à joindre",
		"Joindre un document graphique permettant d'apprécier l'insertion du projet dans son environnement (DP6).", placeholderHeight)
	c.degrade("page", "DP6", nil)
}

func drawPhotoPages(c *RenderContext, d *models.Dossier) {
	for i, pair := range d.PhotoPairs {
		c.NewPage()
		label := strings.TrimSpace(pair.Label)
		if label == "" {
			label = fmt.Sprintf("Point de vue %d", i+1)
		}
		SectionHeader(c, "6 - REPORTAGE PHOTOGRAPHIQUE - "+strings.ToUpper(label))
		c.Y += 10

		drawn := DrawImagePair(c,
			ImageSlot{Ref: pair.Before(), Title: "ÉTAT EXISTANT (Avant)"},
			ImageSlot{Ref: pair.After(), Title: "ÉTAT PROJETÉ (Après)"},
			c.Remaining()-150,
		)
		if !drawn {
			PlaceholderBox(c, "Photographies non fournies",
				"Joindre les photographies avant et après de ce point de vue (DP7 / DP8).", 200)
			c.degrade("photo", label, nil)
		}

		Paragraph(c, "Description - état existant :", pair.BeforeDescription)
		Paragraph(c, "Description - état projeté :", pair.AfterDescription)
	}
}
