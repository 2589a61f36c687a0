// internal/workers/dossier/describe-photos/models.go
package describephotos

import (
	"encoding/json"

	"dossier-workers/internal/models"
)

type Input struct {
	Dossier     json.RawMessage `json:"dossier"`
	Model       string          `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"maxTokens,omitempty"`
}

type Output struct {
	Notice     models.Notice         `json:"notice"`
	Aspect     models.ExteriorAspect `json:"aspect"`
	Extra      map[string]string     `json:"extra,omitempty"`
	FilledKeys []string              `json:"filledKeys"`
	Photos     int                   `json:"photos"`
	Warning    string                `json:"warning,omitempty"`
	RawOutput  string                `json:"rawOutput,omitempty"`
}
