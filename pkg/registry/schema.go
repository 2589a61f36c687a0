// pkg/registry/schema.go
package registry

// ActivityRegistry lists the BPMN service tasks this module serves.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID                   string            `json:"id"`
	DisplayName          string            `json:"displayName"`
	Description          string            `json:"description"`
	Category             string            `json:"category"`
	Version              string            `json:"version"`
	TaskType             string            `json:"taskType"`
	ImplementationStatus string            `json:"implementationStatus"`
	Inputs               map[string]string `json:"inputs"`
	Outputs              map[string]string `json:"outputs"`
	ErrorCodes           []string          `json:"errorCodes"`
	Timeout              string            `json:"timeout"`
	Retries              int               `json:"retries"`
	Workflows            []string          `json:"workflows"`
}

// Statuses accepted for ImplementationStatus.
var Statuses = []string{"planned", "in-progress", "completed", "verified"}
