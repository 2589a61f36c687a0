// cmd/tools/worker-generator/templates.go
package main

var templates = map[string]string{
	"config.go":       configTemplate,
	"models.go":       modelsTemplate,
	"handler.go":      handlerTemplate,
	"handler_test.go": testTemplate,
}

const configTemplate = `// internal/workers/.../{{ .PackageName }}/config.go
package {{ .PackageName }}

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	timeout, _ := time.ParseDuration("{{ .Timeout }}")
	return &Config{Timeout: timeout}
}
`

const modelsTemplate = `// internal/workers/.../{{ .PackageName }}/models.go
package {{ .PackageName }}

import "encoding/json"

var _ json.RawMessage

type Input struct {
{{- range .Inputs }}
	{{ .Name }} {{ .GoType }} {{ .JSONTag }}
{{- end }}
}

type Output struct {
{{- range .Outputs }}
	{{ .Name }} {{ .GoType }} {{ .JSONTag }}
{{- end }}
}
`

const handlerTemplate = `// internal/workers/.../{{ .PackageName }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dossier-workers/internal/common/camunda"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/common/observability"
	"dossier-workers/internal/models"
)

const (
	TaskType = "{{ .TaskType }}"
)

// ErrNotImplemented is returned until Execute is written.
var ErrNotImplemented = errors.New("NOT_IMPLEMENTED")

// Handler serves {{ .Name }}. {{ .Description }}
// Error codes: {{ range $i, $c := .ErrorCodes }}{{ if $i }}, {{ end }}{{ $c }}{{ end }}.
type Handler struct {
	config   *Config
	reporter *camunda.JobReporter
	logger   logger.Logger
}

func NewHandler(config *Config, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		reporter: camunda.NewJobReporter(TaskType, obs, log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.reporter.Fail(context.Background(), client, job, fmt.Errorf("%w: parse input: %v", models.ErrDossierInvalid, err), start)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.reporter.Fail(context.Background(), client, job, err, start)
		return
	}
	h.reporter.Complete(context.Background(), client, job, output, start)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return nil, ErrNotImplemented
}
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"dossier-workers/internal/common/logger"
)

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{})
	assert.ErrorIs(t, err, ErrNotImplemented)
}
`
