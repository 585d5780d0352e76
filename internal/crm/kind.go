package crm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RecordKind describes one CRM collection: where it lives, how it decodes,
// and how its rows, forms and detail panes are laid out.
type RecordKind interface {
	Kind() Kind
	Endpoint() string
	Label() string
	Singular() string
	Columns() []string
	FormFields() []FormField
	RequiredFields() []string
	EditableFields() []string
	// CanAssign reports whether leads can be assigned to records of this kind.
	CanAssign() bool
	// Importable reports whether drafts of this kind can come from a spreadsheet.
	Importable() bool
	Decode(body []byte) ([]Record, error)
	Row(Record) []string
	Detail(Record) []DetailLine
}

type InputType string

const (
	InputText        InputType = "text"
	InputEmail       InputType = "email"
	InputPassword    InputType = "password"
	InputNumber      InputType = "number"
	InputSelect      InputType = "select"
	InputLeadPicker  InputType = "lead"
	InputAgentPicker InputType = "agent"
)

// FormField is one input of a creation form. Dotted names such as
// "budgetRange.min" are nested into objects when the draft is sent.
type FormField struct {
	Name     string
	Label    string
	Input    InputType
	Options  []string
	Default  string
	Required bool
}

type DetailLine struct {
	Label string
	Value string
}

var registry = []RecordKind{
	leadKind{},
	agentKind{},
	buyerKind{},
	sellerKind{},
}

// Kinds returns every record kind in navigation order.
func Kinds() []RecordKind {
	out := make([]RecordKind, len(registry))
	copy(out, registry)
	return out
}

func Lookup(kind Kind) (RecordKind, bool) {
	for _, k := range registry {
		if k.Kind() == kind {
			return k, true
		}
	}
	return nil, false
}

func MustLookup(kind Kind) RecordKind {
	k, ok := Lookup(kind)
	if !ok {
		panic(fmt.Sprintf("crm: unknown record kind %q", kind))
	}
	return k
}

// Find returns the record with the given id, if present.
func Find(records []Record, id string) (Record, bool) {
	for _, r := range records {
		if r.RecordID() == id {
			return r, true
		}
	}
	return nil, false
}

// Draft holds raw form input keyed by field name.
type Draft map[string]string

func (d Draft) Clone() Draft {
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// NewDraft returns a draft seeded with the kind's field defaults.
func NewDraft(k RecordKind) Draft {
	d := Draft{}
	for _, f := range k.FormFields() {
		if f.Default != "" {
			d[f.Name] = f.Default
		}
	}
	return d
}

// Payload converts a draft into the JSON body sent on create. Blank values
// are dropped, number inputs become numbers and dotted names nest.
func Payload(k RecordKind, d Draft) map[string]any {
	out := map[string]any{}
	for _, f := range k.FormFields() {
		raw := strings.TrimSpace(d[f.Name])
		if raw == "" {
			continue
		}
		var value any = raw
		if f.Input == InputPassword {
			value = d[f.Name]
		}
		if f.Input == InputNumber {
			if v, ok := ParseNumber(raw); ok {
				value = v
			}
		}
		setPath(out, f.Name, value)
	}
	return out
}

func setPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func decodeList[T Record](body []byte) ([]Record, error) {
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out, nil
}
