// internal/workers/dossier/generate-dossier-pdf/models.go
package generatedossierpdf

import (
	"encoding/json"

	"dossier-workers/internal/models"
)

type Input struct {
	Dossier json.RawMessage      `json:"dossier"`
	Options models.RenderOptions `json:"options"`
	// FetchMaps defaults to true; only the full variant uses maps.
	FetchMaps *bool `json:"fetchMaps,omitempty"`
}

func (i *Input) fetchMaps() bool {
	return i.FetchMaps == nil || *i.FetchMaps
}

type Output struct {
	DocumentKey string   `json:"documentKey"`
	Filename    string   `json:"filename"`
	PageCount   int      `json:"pageCount"`
	Bytes       int      `json:"bytes"`
	Degraded    []string `json:"degraded"`
}
