package schema

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// Property is a single JSON-Schema property definition, kept as decoded JSON.
type Property map[string]any

func (p Property) str(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p Property) Type() string   { return p.str("type") }
func (p Property) Format() string { return p.str("format") }
func (p Property) Title() string  { return p.str("title") }

// Items returns the schema of array elements, or nil.
func (p Property) Items() Property {
	items, _ := p["items"].(map[string]any)
	return Property(items)
}

func (p Property) IsFile() bool {
	return p.Format() == FormatDataURL
}

func (p Property) IsFileArray() bool {
	return p.Type() == "array" && p.Items().Format() == FormatDataURL
}

// Properties is a JSON object of properties that remembers declaration order.
type Properties struct {
	names  []string
	byName map[string]Property
}

func (p Properties) Len() int {
	return len(p.names)
}

// Names returns property names in declaration order.
func (p Properties) Names() []string {
	return append([]string(nil), p.names...)
}

func (p Properties) Get(name string) (Property, bool) {
	prop, ok := p.byName[name]
	return prop, ok
}

// Set adds or replaces a property. A replaced property keeps its original position.
func (p *Properties) Set(name string, prop Property) {
	if p.byName == nil {
		p.byName = map[string]Property{}
	}
	if _, ok := p.byName[name]; !ok {
		p.names = append(p.names, name)
	}
	p.byName[name] = prop
}

// UnmarshalJSON walks the object token by token so key order survives decoding.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("schema: properties must be an object, got %v", tok)
	}

	*p = Properties{}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)

		var prop Property
		if err = dec.Decode(&prop); err != nil {
			return fmt.Errorf("schema: property %q: %w", name, err)
		}
		p.Set(name, prop)
	}
	_, err = dec.Token()
	return err
}

func (p Properties) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.byName[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
