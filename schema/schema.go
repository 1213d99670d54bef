// Package schema interprets the versioned, multi-step form definitions responses are
// submitted against.
//
// A definition is an ordered list of steps, each carrying a JSON-Schema object whose
// properties name the fields of a response, plus a UI schema keyed by step slug with
// per-field widget hints.
package schema

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	FormatDataURL = "data-url"

	WidgetSignature = "signatureWidget"
	WidgetFile      = "fileWidget"
)

type StepSchema struct {
	Title      string     `json:"title,omitempty"`
	Slug       string     `json:"slug,omitempty"`
	Type       string     `json:"type,omitempty"`
	Properties Properties `json:"properties"`
}

type Step struct {
	Schema     StepSchema     `json:"schema"`
	Conditions map[string]any `json:"conditions,omitempty"`
	Final      bool           `json:"final,omitempty"`
}

// UIHints are the "ui:*" settings of one field.
type UIHints map[string]any

func (h UIHints) Widget() string {
	s, _ := h["ui:widget"].(string)
	return s
}

func (h UIHints) Title() string {
	s, _ := h["ui:title"].(string)
	return s
}

func (h UIHints) IsFileWidget() bool {
	w := h.Widget()
	return w == WidgetSignature || w == WidgetFile
}

// UISchema maps step slug to field name to hints.
type UISchema map[string]map[string]UIHints

// Definition is one parsed form version.
type Definition struct {
	Steps          []Step
	UI             UISchema
	PriorityFields []string
}

// Column is a field name with its display title.
type Column struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Parse reads the stored step list and UI schema. Empty or null documents yield an empty
// definition; a single step object is accepted in place of a list.
func Parse(formJSON, uiSchemaJSON []byte, priorityFields []string) (*Definition, error) {
	d := &Definition{PriorityFields: priorityFields}

	formJSON = bytes.TrimSpace(formJSON)
	switch {
	case len(formJSON) == 0 || bytes.Equal(formJSON, []byte("null")):
	case formJSON[0] == '[':
		if err := json.Unmarshal(formJSON, &d.Steps); err != nil {
			return nil, err
		}
	case formJSON[0] == '{':
		var step Step
		if err := json.Unmarshal(formJSON, &step); err != nil {
			return nil, err
		}
		if step.Schema.Properties.Len() > 0 || step.Schema.Slug != "" {
			d.Steps = []Step{step}
		}
	}

	ui, err := parseUISchema(uiSchemaJSON)
	if err != nil {
		return nil, err
	}
	d.UI = ui
	return d, nil
}

// parseUISchema keeps only object-valued entries; step-level settings such as "ui:order"
// are not field hints.
func parseUISchema(data []byte) (UISchema, error) {
	ui := UISchema{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ui, nil
	}

	var steps map[string]json.RawMessage
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, err
	}
	for slug, raw := range steps {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		hints := map[string]UIHints{}
		for name, rawHints := range fields {
			var h UIHints
			if err := json.Unmarshal(rawHints, &h); err != nil {
				continue
			}
			hints[name] = h
		}
		ui[slug] = hints
	}
	return ui, nil
}

// FlatProperties merges the properties of every step. A name declared again in a later
// step keeps its first position but takes the later definition.
func (d *Definition) FlatProperties() Properties {
	var flat Properties
	for _, step := range d.Steps {
		for _, name := range step.Schema.Properties.Names() {
			prop, _ := step.Schema.Properties.Get(name)
			flat.Set(name, prop)
		}
	}
	return flat
}

// FlatSchema is a single object schema holding every step's properties.
func (d *Definition) FlatSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": d.FlatProperties(),
	}
}

// FlatUISchema merges the per-step hints into one map; later steps win.
func (d *Definition) FlatUISchema() map[string]UIHints {
	flat := map[string]UIHints{}
	for _, step := range d.Steps {
		for name, hints := range d.UI[step.Schema.Slug] {
			flat[name] = hints
		}
	}
	return flat
}

// JSONProperties lists every field with its display title in declaration order.
func (d *Definition) JSONProperties() []Column {
	flat := d.FlatProperties()
	cols := make([]Column, 0, flat.Len())
	for _, name := range flat.Names() {
		prop, _ := flat.Get(name)
		title := prop.Title()
		if title == "" {
			title = Titleize(name)
		}
		cols = append(cols, Column{Name: name, Title: title})
	}
	return cols
}

// FileKeys returns the names of the fields that carry files or signatures.
func (d *Definition) FileKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	for _, step := range d.Steps {
		stepUI := d.UI[step.Schema.Slug]
		for _, name := range step.Schema.Properties.Names() {
			prop, _ := step.Schema.Properties.Get(name)
			if stepUI[name].IsFileWidget() || prop.IsFile() || prop.IsFileArray() {
				keys[name] = struct{}{}
			}
		}
	}
	return keys
}

// OrderedNames returns field names with priority fields first, in priority order, followed
// by the remaining fields in declaration order.
func (d *Definition) OrderedNames() []string {
	names := d.FlatProperties().Names()
	rank := make(map[string]int, len(d.PriorityFields))
	for i, name := range d.PriorityFields {
		if _, ok := rank[name]; !ok {
			rank[name] = i
		}
	}

	ordered := make([]string, 0, len(names))
	prioritized := make([]string, len(d.PriorityFields))
	for _, name := range names {
		if i, ok := rank[name]; ok {
			prioritized[i] = name
		}
	}
	for _, name := range prioritized {
		if name != "" {
			ordered = append(ordered, name)
		}
	}
	for _, name := range names {
		if _, ok := rank[name]; !ok {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

// Titleize turns a field name like "banana_consumption" into "Banana Consumption".
func Titleize(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	return cases.Title(language.English).String(strings.Join(words, " "))
}
