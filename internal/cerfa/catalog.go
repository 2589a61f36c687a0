package cerfa

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

const (
	FieldText     = "PDFTextField"
	FieldCheckBox = "PDFCheckBox"
)

// Field is one entry of a template scan.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Catalog lists the fields a template actually carries. A nil catalog
// accepts every field.
type Catalog struct {
	fields map[string]string
}

func NewCatalog(fields []Field) *Catalog {
	c := &Catalog{fields: make(map[string]string, len(fields))}
	for _, f := range fields {
		c.fields[f.Name] = f.Type
	}
	return c
}

// LoadCatalog reads a JSON array of {name, type} objects.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var fields []Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return NewCatalog(fields), nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.fields)
}

// Accepts reports whether the template has the field with a compatible type.
// Entries with no recorded type accept both kinds.
func (c *Catalog) Accepts(name, kind string) bool {
	if c == nil {
		return true
	}
	t, ok := c.fields[name]
	if !ok {
		return false
	}
	return t == "" || t == kind
}

// Filter drops values the template cannot hold and returns the skipped
// field names, sorted.
func (c *Catalog) Filter(v Values) (Values, []string) {
	out := Values{Text: map[string]string{}, Checks: map[string]bool{}}
	var skipped []string
	for name, s := range v.Text {
		if c.Accepts(name, FieldText) {
			out.Text[name] = s
		} else {
			skipped = append(skipped, name)
		}
	}
	for name, on := range v.Checks {
		if c.Accepts(name, FieldCheckBox) {
			out.Checks[name] = on
		} else {
			skipped = append(skipped, name)
		}
	}
	sort.Strings(skipped)
	return out, skipped
}
