// internal/workers/dossier/fill-cerfa-form/models.go
package fillcerfaform

import "encoding/json"

type Input struct {
	Dossier json.RawMessage `json:"dossier"`
}

type Output struct {
	DocumentKey   string   `json:"documentKey"`
	Filename      string   `json:"filename"`
	Bytes         int      `json:"bytes"`
	SkippedFields []string `json:"skippedFields"`
}
