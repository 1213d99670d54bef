package schema

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	ReasonUnknownField = "unknown_field"
	ReasonInvalidValue = "invalid_value"
)

// FieldError reports why a value was rejected for a field.
type FieldError struct {
	Field   string
	Reason  string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func init() {
	jsonschema.Formats[FormatDataURL] = func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return true
		}
		return strings.HasPrefix(s, "data:")
	}
}

const propertyURL = "https://newsroom.invalid/property.json"

// ValidateField checks value against the named field's schema. Values must be decoded
// JSON (nil, bool, float64, string, []any, map[string]any).
func (d *Definition) ValidateField(name string, value any) error {
	prop, ok := d.FlatProperties().Get(name)
	if !ok {
		return &FieldError{Field: name, Reason: ReasonUnknownField, Message: "field does not exist in this form"}
	}

	raw, err := json.Marshal(prop)
	if err != nil {
		return err
	}
	if bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	c.AssertFormat = true
	if err = c.AddResource(propertyURL, bytes.NewReader(raw)); err != nil {
		return err
	}
	sch, err := c.Compile(propertyURL)
	if err != nil {
		return err
	}

	if err = sch.Validate(value); err != nil {
		return &FieldError{Field: name, Reason: ReasonInvalidValue, Message: validationMessage(err)}
	}
	return nil
}

// validationMessage digs out the innermost cause, which names the failing keyword.
func validationMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve.Message
}
