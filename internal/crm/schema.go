package crm

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemasFS embed.FS

var (
	compileOnce     sync.Once
	compiledSchemas map[Kind]*jsonschema.Schema
	compileErr      error
)

func loadSchemas() (map[Kind]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7

		out := make(map[Kind]*jsonschema.Schema, len(registry))
		for _, k := range registry {
			name := "schemas/" + string(k.Kind()) + ".json"
			f, err := schemasFS.Open(name)
			if err != nil {
				compileErr = fmt.Errorf("open schema %s: %w", name, err)
				return
			}
			err = compiler.AddResource(name, f)
			_ = f.Close()
			if err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			schema, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[k.Kind()] = schema
		}
		compiledSchemas = out
	})
	return compiledSchemas, compileErr
}

// DraftError reports a draft that must not be sent.
type DraftError struct {
	Kind    Kind
	Missing []string
	Err     error
}

func (e *DraftError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required fields: " + strings.Join(e.Missing, ", ")
	}
	return fmt.Sprintf("invalid %s draft: %v", e.Kind, e.Err)
}

func (e *DraftError) Unwrap() error { return e.Err }

// Notice is the text shown to the operator for a rejected draft.
func (e *DraftError) Notice(k RecordKind) string {
	if len(e.Missing) == 0 {
		return "Please check the " + k.Singular() + " fields"
	}
	labels := make([]string, 0, len(e.Missing))
	for _, name := range e.Missing {
		labels = append(labels, fieldLabel(k, name))
	}
	return "Please fill in: " + strings.Join(labels, ", ")
}

// Validate checks a create payload against the kind's schema.
func Validate(k RecordKind, payload map[string]any) error {
	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[k.Kind()]
	if !ok {
		return fmt.Errorf("no schema for %s", k.Kind())
	}

	// round-trip so the validator only sees plain JSON values
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return err
	}

	if err := schema.Validate(doc); err != nil {
		var missing []string
		for _, name := range k.RequiredFields() {
			if _, present := payload[name]; !present {
				missing = append(missing, name)
			}
		}
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &DraftError{Kind: k.Kind(), Missing: missing, Err: verr}
		}
		return &DraftError{Kind: k.Kind(), Missing: missing, Err: err}
	}
	return nil
}

func fieldLabel(k RecordKind, name string) string {
	for _, f := range k.FormFields() {
		if f.Name == name {
			return f.Label
		}
	}
	return name
}
