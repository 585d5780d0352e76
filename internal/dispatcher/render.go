package dispatcher

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/phillip-england/estatecrm/internal/crm"
)

var titleCaser = cases.Title(language.English)

// Title capitalises each word of an enum value, "under offer" -> "Under Offer".
func Title(s string) string {
	return titleCaser.String(s)
}

type Table struct {
	Kind     crm.Kind
	Label    string
	Singular string
	Columns  []string
	Rows     []Row
	Loaded   bool
}

type Row struct {
	ID            string
	Cells         []string
	Selected      bool
	PendingDelete bool
}

type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Input is a form control with its current value and choices resolved.
type Input struct {
	Name     string
	Label    string
	Type     string
	Select   bool
	Value    string
	Required bool
	Options  []Option
}

type Form struct {
	Kind     crm.Kind
	Label    string
	Singular string
	Visible  bool
	Inputs   []Input
}

type Detail struct {
	Kind          crm.Kind
	Singular      string
	ID            string
	Title         string
	Lines         []crm.DetailLine
	Edits         []Input
	CanAssign     bool
	Assigning     bool
	LeadOptions   []Option
	PendingDelete bool
}

// RenderList builds the table for kind from its current snapshot.
func (d *Dispatcher) RenderList(kind crm.RecordKind) Table {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := kind.Kind()
	t := Table{
		Kind:     k,
		Label:    kind.Label(),
		Singular: kind.Singular(),
		Columns:  kind.Columns(),
		Loaded:   d.loaded[k],
	}
	current, _ := d.view.RecordKind()
	onView := current != nil && current.Kind() == k
	for _, rec := range d.snapshots[k] {
		id := rec.RecordID()
		t.Rows = append(t.Rows, Row{
			ID:            id,
			Cells:         kind.Row(rec),
			Selected:      onView && id == d.selectedID,
			PendingDelete: onView && id == d.pendingDelete,
		})
	}
	return t
}

// RenderForm builds the creation form for the current view.
func (d *Dispatcher) RenderForm() (Form, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kind, ok := d.view.RecordKind()
	if !ok {
		return Form{}, false
	}
	f := Form{
		Kind:     kind.Kind(),
		Label:    kind.Label(),
		Singular: kind.Singular(),
		Visible:  d.showForm,
	}
	for _, field := range kind.FormFields() {
		value, set := d.draft[field.Name]
		if !set {
			value = field.Default
		}
		f.Inputs = append(f.Inputs, d.inputLocked(field, value))
	}
	return f, true
}

func (d *Dispatcher) inputLocked(field crm.FormField, value string) Input {
	in := Input{
		Name:     field.Name,
		Label:    field.Label,
		Type:     string(field.Input),
		Value:    value,
		Required: field.Required,
	}
	switch field.Input {
	case crm.InputSelect:
		in.Select = true
		if field.Default == "" {
			in.Options = append(in.Options, Option{Label: "Select " + field.Label, Selected: value == ""})
		}
		for _, opt := range field.Options {
			in.Options = append(in.Options, Option{Value: opt, Label: Title(opt), Selected: opt == value})
		}
	case crm.InputLeadPicker:
		in.Select = true
		in.Options = append([]Option{{Label: "Select Lead", Selected: value == ""}}, d.leadOptionsLocked(value)...)
	case crm.InputAgentPicker:
		in.Select = true
		in.Options = append([]Option{{Label: "Select Agent", Selected: value == ""}}, d.agentOptionsLocked(value)...)
	}
	return in
}

func (d *Dispatcher) leadOptionsLocked(selected string) []Option {
	var out []Option
	for _, rec := range d.snapshots[crm.KindLeads] {
		lead, ok := rec.(crm.Lead)
		if !ok {
			continue
		}
		out = append(out, Option{Value: lead.ID, Label: crm.LeadLabel(lead), Selected: lead.ID == selected})
	}
	return out
}

func (d *Dispatcher) agentOptionsLocked(selected string) []Option {
	var out []Option
	for _, rec := range d.snapshots[crm.KindAgents] {
		agent, ok := rec.(crm.Agent)
		if !ok {
			continue
		}
		label := agent.Name
		if label == "" {
			label = agent.Email
		}
		out = append(out, Option{Value: agent.ID, Label: label, Selected: agent.ID == selected})
	}
	return out
}

// RenderDetail builds the detail pane of the open record. It reports false
// when nothing is open or the record has left the snapshot.
func (d *Dispatcher) RenderDetail() (Detail, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kind, ok := d.view.RecordKind()
	if !ok || d.selectedID == "" {
		return Detail{}, false
	}
	rec, ok := crm.Find(d.snapshots[kind.Kind()], d.selectedID)
	if !ok {
		return Detail{}, false
	}

	det := Detail{
		Kind:          kind.Kind(),
		Singular:      kind.Singular(),
		ID:            rec.RecordID(),
		Title:         Title(kind.Singular()) + " Details",
		Lines:         kind.Detail(rec),
		CanAssign:     kind.CanAssign(),
		Assigning:     d.assigning,
		PendingDelete: d.pendingDelete == rec.RecordID(),
	}
	if det.Assigning {
		det.LeadOptions = append([]Option{{Label: "Select Lead", Selected: d.selectedLead == ""}}, d.leadOptionsLocked(d.selectedLead)...)
	}

	values := fieldValues(rec)
	fields := map[string]crm.FormField{}
	for _, f := range kind.FormFields() {
		fields[f.Name] = f
	}
	for _, name := range kind.EditableFields() {
		field := fields[name]
		in := d.inputLocked(field, values[name])
		if field.Input == crm.InputAgentPicker {
			in.Options[0].Label = "Unassigned"
		}
		det.Edits = append(det.Edits, in)
	}
	return det, true
}

func fieldValues(rec crm.Record) map[string]string {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
