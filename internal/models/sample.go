// internal/models/sample.go
package models

import (
	"fmt"
	"time"
)

// DefaultAttachments is the standard DP pièce checklist.
func DefaultAttachments() Attachments {
	return Attachments{
		"DP1":  {Name: "Plan de situation"},
		"DP2":  {Name: "Plan de masse"},
		"DP3":  {Name: "Plan en coupe"},
		"DP4":  {Name: "Plan des façades et des toitures"},
		"DP5":  {Name: "Représentation de l'aspect extérieur"},
		"DP6":  {Name: "Document graphique d'insertion"},
		"DP7":  {Name: "Photographie environnement proche (état existant)"},
		"DP8":  {Name: "Photographie environnement lointain (état projeté)"},
		"DP11": {Name: "Notice descriptive", Provided: true},
	}
}

// FrenchDate formats t as dd/mm/yyyy.
func FrenchDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// SampleDossier returns the demo record the wizard starts from.
func SampleDossier(now time.Time) Dossier {
	return Dossier{
		Reference: fmt.Sprintf("DP-%s-001", now.Format("20060102")),
		CreatedAt: FrenchDate(now),
		Applicant: Applicant{
			Civility:   "M.",
			LastName:   "Dupont",
			FirstName:  "Jean",
			BirthDate:  "15/03/1985",
			BirthPlace: "Paris",
			Address:    "12 Rue de la République",
			PostalCode: "75001",
			City:       "Paris",
			Phone:      "06 12 34 56 78",
			Email:      "jean.dupont@email.fr",
			Role:       "Propriétaire",
		},
		Plot: Plot{
			Address:          "25 Chemin des Vignes",
			PostalCode:       "19100",
			Municipality:     "Brive-la-Gaillarde",
			CadastralSection: "AB",
			ParcelNumber:     "0123",
			Area:             850,
			ZoningCode:       "UB",
			MapMode:          MapModeDetailed,
		},
		Works: Works{
			Type:              "Modification de l'aspect extérieur",
			Description:       "Ravalement de façade avec remplacement des menuiseries",
			FloorAreaExisting: 95,
			FootprintExisting: 110,
			HeightExisting:    5.5,
			HeightProjected:   5.5,
			StartDate:         "01/04/2026",
			DurationMonths:    3,
		},
		PhotoPairs: []PhotoPair{
			{Label: "Façade Extérieure", BeforeData: "/images/avant 1.jpeg", AfterData: "/images/apres 1.jpeg"},
			{Label: "Façade Latérale", BeforeData: "/images/avant 2.jpeg", AfterData: "/images/apres 2.jpeg"},
		},
		Plans: Plans{
			SitePlanMode:   PlanModeAI,
			SitePlan:       "/plans/plan de mass.png",
			SectionMode:    PlanModeAI,
			Section:        "/plans/plan de coupe.png",
			ElevationsMode: PlanModeAI,
			Elevations:     "/plans/plan des facades.png",
		},
		Attachments: DefaultAttachments(),
		Cerfa: CerfaExtras{
			SignatureDate:  FrenchDate(now.AddDate(0, 0, 1)),
			SignaturePlace: "Paris",
			CompanyName:    "SOCIETE DUPONT",
			SIRET:          "12345678901234",
			NatureDetails:  "Remplacement de menuiseries à l'identique",
			CoApplicant: &CoApplicant{
				LastName:   "Martin",
				FirstName:  "Marie",
				Address:    "12 Rue de la République",
				PostalCode: "75001",
				City:       "Paris",
			},
			Amenities: &Amenities{Fence: true},
			Taxation:  &Taxation{TaxableAreaExisting: 95},
			Architect: &Architect{},
		},
	}
}
