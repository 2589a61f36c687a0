// Package cerfa fills the Cerfa 13703*09 déclaration préalable form from a
// dossier record.
package cerfa

import (
	"strconv"

	"dossier-workers/internal/models"
)

// Binding ties one form field to a dossier value. Exactly one of Text or
// Check is set.
type Binding struct {
	Field string
	Text  func(d *models.Dossier) string
	Check func(d *models.Dossier) bool
}

// Values holds what will be written into the form. Empty text and unchecked
// boxes are never present.
type Values struct {
	Text   map[string]string
	Checks map[string]bool
}

func (v Values) Len() int {
	return len(v.Text) + len(v.Checks)
}

func text(field string, fn func(d *models.Dossier) string) Binding {
	return Binding{Field: field, Text: fn}
}

func check(field string, fn func(d *models.Dossier) bool) Binding {
	return Binding{Field: field, Check: fn}
}

func number(v models.Number) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v.Float(), 'f', -1, 64)
}

func isWoman(civility string) bool { return civility == "Mme" || civility == "Mlle" }

func coApplicant(d *models.Dossier) models.CoApplicant {
	if d.Cerfa.CoApplicant == nil {
		return models.CoApplicant{}
	}
	return *d.Cerfa.CoApplicant
}

func amenities(d *models.Dossier) models.Amenities {
	if d.Cerfa.Amenities == nil {
		return models.Amenities{}
	}
	return *d.Cerfa.Amenities
}

// Bindings is the field mapping of the 13703*09 form.
var Bindings = []Binding{
	// Demandeur
	text("D1N_nom", func(d *models.Dossier) string { return d.Applicant.LastName }),
	text("D1P_prenom", func(d *models.Dossier) string { return d.Applicant.FirstName }),
	check("D1H_homme", func(d *models.Dossier) bool { return d.Applicant.Civility == "M." }),
	check("D1F_femme", func(d *models.Dossier) bool { return isWoman(d.Applicant.Civility) }),
	text("D1A_naissance", func(d *models.Dossier) string { return d.Applicant.BirthDate }),
	text("D1C_commune", func(d *models.Dossier) string { return d.Applicant.BirthPlace }),
	text("D3V_voie", func(d *models.Dossier) string { return d.Applicant.Address }),
	text("D3C_code", func(d *models.Dossier) string { return d.Applicant.PostalCode }),
	text("D3L_localite", func(d *models.Dossier) string { return d.Applicant.City }),
	text("D3T_telephone", func(d *models.Dossier) string { return d.Applicant.Phone }),
	text("D5GE1_email", func(d *models.Dossier) string { return d.Applicant.Email }),
	check("D5A_acceptation", func(d *models.Dossier) bool { return true }),

	// Personne morale
	text("D2D_denomination", func(d *models.Dossier) string { return d.Cerfa.CompanyName }),
	text("D2S_SIRET", func(d *models.Dossier) string { return d.Cerfa.SIRET }),

	// Terrain
	text("T2V_voie", func(d *models.Dossier) string { return d.Plot.Address }),
	text("T2W_lieudit", func(d *models.Dossier) string { return d.Plot.Locality }),
	text("T2C_code", func(d *models.Dossier) string { return d.Plot.PostalCode }),
	text("T2L_localite", func(d *models.Dossier) string { return d.Plot.Municipality }),
	text("T2S_section", func(d *models.Dossier) string { return d.Plot.CadastralSection }),
	text("T2N_numero", func(d *models.Dossier) string { return d.Plot.ParcelNumber }),
	text("T2T_superficie", func(d *models.Dossier) string { return number(d.Plot.Area) }),
	check("T2J_lotissement", func(d *models.Dossier) bool { return d.Plot.InAllotment }),

	// Travaux
	text("C2ZD1_description", func(d *models.Dossier) string { return d.Works.Description }),
	text("C7A_surface", func(d *models.Dossier) string { return number(d.Works.FloorAreaExisting) }),
	text("C7U_creee", func(d *models.Dossier) string { return number(d.Works.FloorAreaCreated) }),
	text("X1P_precisions", func(d *models.Dossier) string { return d.Cerfa.NatureDetails }),

	// Co-demandeur
	check("D4H_homme", func(d *models.Dossier) bool { return coApplicant(d).Civility == "M." }),
	check("D4F_femme", func(d *models.Dossier) bool { return isWoman(coApplicant(d).Civility) }),
	text("D4N_nom", func(d *models.Dossier) string { return coApplicant(d).LastName }),
	text("D4P_prenom", func(d *models.Dossier) string { return coApplicant(d).FirstName }),
	text("D4V_voie", func(d *models.Dossier) string { return coApplicant(d).Address }),
	text("D4C_code", func(d *models.Dossier) string { return coApplicant(d).PostalCode }),
	text("D4L_localite", func(d *models.Dossier) string { return coApplicant(d).City }),
	text("D4T_telephone", func(d *models.Dossier) string { return coApplicant(d).Phone }),
	text("D4GE1_email", func(d *models.Dossier) string { return coApplicant(d).Email }),

	// Aménagements
	check("C5ZE1_piscine", func(d *models.Dossier) bool { return amenities(d).Pool }),
	check("C5ZE2_garage", func(d *models.Dossier) bool { return amenities(d).Garage }),
	check("C5ZE3_veranda", func(d *models.Dossier) bool { return amenities(d).Veranda }),
	check("C5ZE4_abri", func(d *models.Dossier) bool { return amenities(d).Shed }),
	check("C5ZK1_extension", func(d *models.Dossier) bool { return amenities(d).Extension }),
	check("C5ZK2_surelevation", func(d *models.Dossier) bool { return amenities(d).Raising }),
	check("C2ZC3_cloture", func(d *models.Dossier) bool { return amenities(d).Fence }),

	// Fiscalité
	text("T5ZA1", func(d *models.Dossier) string {
		if d.Cerfa.Taxation == nil {
			return ""
		}
		return number(d.Cerfa.Taxation.TaxableAreaExisting)
	}),
	text("T5ZB1", func(d *models.Dossier) string {
		if d.Cerfa.Taxation == nil {
			return ""
		}
		return number(d.Cerfa.Taxation.TaxableAreaCreated)
	}),
	text("T5ZC1", func(d *models.Dossier) string {
		if d.Cerfa.Taxation == nil || d.Cerfa.Taxation.ParkingCreated <= 0 {
			return ""
		}
		return strconv.Itoa(d.Cerfa.Taxation.ParkingCreated.Int())
	}),

	// Architecte
	text("R2N_deposant", func(d *models.Dossier) string {
		if a := d.Cerfa.Architect; a != nil && a.Engaged {
			return a.Name
		}
		return ""
	}),
	text("R2A_numero", func(d *models.Dossier) string {
		if a := d.Cerfa.Architect; a != nil && a.Engaged {
			return a.Number
		}
		return ""
	}),

	// Engagement. The creation date stands in when no signature date was given.
	text("E1D_date", func(d *models.Dossier) string {
		if d.Cerfa.SignatureDate != "" {
			return d.Cerfa.SignatureDate
		}
		return d.CreatedAt
	}),
	text("E1L_lieu", func(d *models.Dossier) string { return d.Cerfa.SignaturePlace }),
}

// Evaluate runs every binding against the dossier.
func Evaluate(d *models.Dossier, bindings []Binding) Values {
	v := Values{Text: map[string]string{}, Checks: map[string]bool{}}
	for _, b := range bindings {
		switch {
		case b.Text != nil:
			if s := b.Text(d); s != "" {
				v.Text[b.Field] = s
			}
		case b.Check != nil:
			if b.Check(d) {
				v.Checks[b.Field] = true
			}
		}
	}
	return v
}
