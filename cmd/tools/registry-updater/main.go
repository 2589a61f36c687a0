// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"dossier-workers/pkg/registry"
)

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	default:
		help()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func pathFlag(fs *flag.FlagSet) *string {
	return fs.String("path", "configs/activity-registry.json", "Path to registry file")
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	path := pathFlag(fs)
	id := fs.String("id", "", "Activity ID (e.g., describe-photos)")
	displayName := fs.String("displayName", "", "Display name")
	description := fs.String("description", "", "Description")
	category := fs.String("category", "dossier", "Category")
	taskType := fs.String("taskType", "", "Zeebe job type (defaults to the ID)")
	timeout := fs.String("timeout", "30s", "Job timeout")
	retries := fs.Int("retries", 3, "Job retries")
	_ = fs.Parse(args)

	if *id == "" || *displayName == "" {
		fs.Usage()
		return fmt.Errorf("id and displayName are required")
	}
	if *taskType == "" {
		*taskType = *id
	}

	reg, err := registry.LoadRegistry(*path)
	if os.IsNotExist(err) {
		reg, err = &registry.ActivityRegistry{Version: "1.0.0"}, nil
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	for _, existing := range reg.Activities {
		if existing.ID == *id {
			return fmt.Errorf("activity with ID %s already exists", *id)
		}
	}

	reg.Activities = append(reg.Activities, registry.Activity{
		ID:                   *id,
		DisplayName:          *displayName,
		Description:          *description,
		Category:             *category,
		Version:              "1.0.0",
		TaskType:             *taskType,
		ImplementationStatus: "planned",
		Inputs:               map[string]string{},
		Outputs:              map[string]string{},
		ErrorCodes:           []string{},
		Timeout:              *timeout,
		Retries:              *retries,
		Workflows:            []string{},
	})
	if err := reg.Validate(); err != nil {
		return err
	}
	reg.Touch(time.Now())
	if err := reg.Save(*path); err != nil {
		return err
	}
	fmt.Printf("Added activity: %s\n", *id)
	return nil
}

func runUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	path := pathFlag(fs)
	id := fs.String("id", "", "Activity ID to update")
	field := fs.String("field", "", "Field to update (status, version, description, timeout, retries, errorCodes)")
	value := fs.String("value", "", "New value; errorCodes takes a comma separated list")
	_ = fs.Parse(args)

	if *id == "" || *field == "" || *value == "" {
		fs.Usage()
		return fmt.Errorf("id, field and value are required")
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	var target *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == *id {
			target = &reg.Activities[i]
		}
	}
	if target == nil {
		return fmt.Errorf("activity with ID %s not found", *id)
	}

	switch *field {
	case "status":
		target.ImplementationStatus = *value
	case "version":
		target.Version = *value
	case "description":
		target.Description = *value
	case "timeout":
		target.Timeout = *value
	case "retries":
		n, err := strconv.Atoi(*value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		target.Retries = n
	case "errorCodes":
		target.ErrorCodes = strings.Split(*value, ",")
	default:
		return fmt.Errorf("unknown field: %s", *field)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	reg.Touch(time.Now())
	if err := reg.Save(*path); err != nil {
		return err
	}
	fmt.Printf("Updated activity %s, field %s to %s\n", *id, *field, *value)
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := pathFlag(fs)
	_ = fs.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	path := pathFlag(fs)
	_ = fs.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	activities := append([]registry.Activity(nil), reg.Activities...)
	sort.Slice(activities, func(i, j int) bool { return activities[i].TaskType < activities[j].TaskType })
	for _, a := range activities {
		fmt.Printf("%-24s %-12s %-8s retries=%d  %s\n", a.TaskType, a.ImplementationStatus, a.Timeout, a.Retries, strings.Join(a.ErrorCodes, ","))
	}
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add       Add a new activity to the registry
  update    Update an existing activity's field
  validate  Validate the registry file
  list      Print every activity with its timeout and error codes
  help      Show this help message

Examples:
  registry-updater add -id describe-photos -displayName "Describe photos" -timeout 150s
  registry-updater update -id fill-cerfa-form -field status -value verified
  registry-updater validate -path configs/activity-registry.json`)
}
