// Package renderer turns a stored response into ordered, human readable rows using the
// form version it was submitted against.
package renderer

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/schema"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	TypeText = "text"
	TypeLink = "link"

	FilePlaceholder = "<File>"
)

func init() {
	message.SetString(language.German, "Yes", "Ja")
	message.SetString(language.German, "No", "Nein")
	message.SetString(language.English, "Yes", "Yes")
	message.SetString(language.English, "No", "No")
}

var langMatcher = language.NewMatcher([]language.Tag{
	language.English, // default
	language.German,
})

// MatchLanguage picks the supported language closest to the given preferences, which may be
// tags or Accept-Language values.
func MatchLanguage(prefs ...string) language.Tag {
	tag, _ := language.MatchStrings(langMatcher, prefs...)
	base, _ := tag.Base()
	return language.Make(base.String())
}

// FileRef identifies one stored file of a response.
type FileRef struct {
	InvestigationSlug string
	FormSlug          string
	ResponseID        int64
	Field             string
	Index             *int
}

// URLBuilder turns file references into download links.
type URLBuilder interface {
	FileURL(ref FileRef) string
}

type Field struct {
	Title    string   `json:"title"`
	JSONName string   `json:"json_name"`
	DataType string   `json:"data_type"`
	Type     string   `json:"type"`
	Value    string   `json:"value"`
	File     *FileRef `json:"-"`
}

// Source is a response with the context needed to render it.
type Source struct {
	Response          *model.FormResponse
	Instance          *model.FormInstance
	InvestigationSlug string
	FormSlug          string
}

func (src Source) instance() *model.FormInstance {
	if src.Instance != nil {
		return src.Instance
	}
	return src.Response.FormInstance
}

type Renderer struct {
	printer *message.Printer
}

func New(lang language.Tag) *Renderer {
	return &Renderer{printer: message.NewPrinter(lang)}
}

// Fields renders every field of the response's own form version in priority order.
// Links are resolved with urls when it is not nil.
//
// A value that does not fit its field is rendered as an empty row and reported with a
// *model.IntegrityWarning next to the other fields.
func (r *Renderer) Fields(src Source, urls URLBuilder) ([]Field, error) {
	inst := src.instance()
	if inst == nil {
		return nil, &model.IntegrityWarning{ResponseID: src.Response.ID, Err: fmt.Errorf("form version not loaded")}
	}
	def, err := inst.Definition()
	if err != nil {
		return nil, &model.IntegrityWarning{ResponseID: src.Response.ID, Err: err}
	}

	props := def.FlatProperties()
	ui := def.FlatUISchema()
	data := src.Response.JSON

	var warning error
	fields := []Field{}
	for _, name := range def.OrderedNames() {
		prop, _ := props.Get(name)
		title := fieldTitle(name, prop, ui[name])
		value, present := data[name]

		ref := FileRef{
			InvestigationSlug: src.InvestigationSlug,
			FormSlug:          src.FormSlug,
			ResponseID:        src.Response.ID,
			Field:             name,
		}

		switch {
		case ui[name].Widget() == schema.WidgetSignature || prop.IsFile():
			if !present || value == nil || value == "" {
				fields = append(fields, Field{Title: title, JSONName: name, DataType: prop.Type(), Type: TypeText})
				continue
			}
			fields = append(fields, linkField(title, name, prop.Type(), ref, urls))

		case prop.IsFileArray():
			if !present || value == nil {
				continue
			}
			items, ok := value.([]any)
			if !ok {
				warning = &model.IntegrityWarning{
					ResponseID: src.Response.ID,
					Err:        fmt.Errorf("field %q holds %T, want a list of files", name, value),
				}
				fields = append(fields, Field{Title: title, JSONName: name, DataType: prop.Type(), Type: TypeText})
				continue
			}
			for i := range items {
				idx := i
				ref := ref
				ref.Index = &idx
				fields = append(fields, linkField(
					fmt.Sprintf("%s %d", title, i), fmt.Sprintf("%s-%d", name, i), prop.Items().Type(), ref, urls))
			}

		case prop.Type() == "boolean":
			answer := r.printer.Sprintf("No")
			if truthy(value) {
				answer = r.printer.Sprintf("Yes")
			}
			fields = append(fields, Field{
				Title: title, JSONName: name, DataType: prop.Type(), Type: TypeText,
				Value: answer,
			})

		default:
			fields = append(fields, Field{
				Title: title, JSONName: name, DataType: prop.Type(), Type: TypeText,
				Value: FormatValue(value),
			})
		}
	}
	return fields, warning
}

func linkField(title, name, dataType string, ref FileRef, urls URLBuilder) Field {
	f := Field{Title: title, JSONName: name, DataType: dataType, Type: TypeLink, File: &ref}
	if urls != nil {
		f.Value = urls.FileURL(ref)
	}
	return f
}

// fieldTitle prefers the UI title, then the schema title, then the field name.
func fieldTitle(name string, prop schema.Property, hints schema.UIHints) string {
	if t := hints.Title(); t != "" {
		return t
	}
	if t := prop.Title(); t != "" {
		return t
	}
	return name
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case nil:
		return false
	}
	return true
}

// FormatValue renders a decoded JSON value as plain text; absent values are empty.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// EmailFields lists the rendered fields as "title: value" lines, with a placeholder for
// files.
func (r *Renderer) EmailFields(src Source) (string, error) {
	fields, err := r.Fields(src, nil)
	if err != nil {
		return "", err
	}
	lines := make([]string, len(fields))
	for i, f := range fields {
		value := f.Value
		if f.Type != TypeText {
			value = FilePlaceholder
		}
		lines[i] = f.Title + ": " + value
	}
	return strings.Join(lines, "\n"), nil
}
