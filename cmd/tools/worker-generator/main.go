// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"dossier-workers/pkg/registry"
)

// WorkerData feeds the templates.
type WorkerData struct {
	Name        string
	PackageName string
	TaskType    string
	Description string
	Timeout     string
	Inputs      []Field
	Outputs     []Field
	ErrorCodes  []string
}

type Field struct {
	Name    string
	GoType  string
	JSONTag string
}

// goType maps the registry's JSON type names to Go types.
func goType(jsonType string) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "json.RawMessage"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

func fieldsFor(props map[string]string, omitempty bool) []Field {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		tag := name
		if omitempty {
			tag += ",omitempty"
		}
		fields = append(fields, Field{
			Name:    upperFirst(name),
			GoType:  goType(props[name]),
			JSONTag: fmt.Sprintf("`json:%q`", tag),
		})
	}
	return fields
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func packageName(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

func dataFor(a *registry.Activity) WorkerData {
	timeout := a.Timeout
	if _, err := time.ParseDuration(timeout); err != nil {
		timeout = "30s"
	}
	return WorkerData{
		Name:        a.DisplayName,
		PackageName: packageName(a.ID),
		TaskType:    a.TaskType,
		Description: a.Description,
		Timeout:     timeout,
		Inputs:      fieldsFor(a.Inputs, false),
		Outputs:     fieldsFor(a.Outputs, false),
		ErrorCodes:  a.ErrorCodes,
	}
}

// render executes every template and gofmts the Go files.
func render(data WorkerData) (map[string][]byte, error) {
	out := make(map[string][]byte, len(templates))
	for name, src := range templates {
		tmpl, err := template.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute %s: %w", name, err)
		}
		code := buf.Bytes()
		if strings.HasSuffix(name, ".go") {
			if code, err = format.Source(code); err != nil {
				return nil, fmt.Errorf("format %s: %w", name, err)
			}
		}
		out[name] = code
	}
	return out, nil
}

func main() {
	activity := flag.String("activity", "", "Activity ID from registry (e.g., describe-photos)")
	outputDir := flag.String("output", "./internal/workers/", "Output directory for the generated worker")
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry JSON file")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *activity == "" {
		fmt.Println("Usage: worker-generator -activity <id> [-output <dir>] [-registry <path>]")
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}

	var found *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == *activity {
			found = &reg.Activities[i]
		}
	}
	if found == nil {
		fmt.Fprintf(os.Stderr, "Activity '%s' not found in registry %s\n", *activity, *registryPath)
		os.Exit(1)
	}

	files, err := render(dataFor(found))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	workerDir := filepath.Join(*outputDir, strings.ToLower(found.Category), found.ID)
	if err := os.MkdirAll(workerDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}
	for name, content := range files {
		path := filepath.Join(workerDir, name)
		if _, err := os.Stat(path); err == nil && !*force {
			fmt.Printf("skipped %s (exists)\n", path)
			continue
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("generated %s\n", path)
	}

	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Implement Execute in handler.go\n")
	fmt.Printf("  2. Register the worker in cmd/worker-manager/main.go\n")
	fmt.Printf("  3. Add workers.%s to configs/config.yaml\n", found.TaskType)
}
