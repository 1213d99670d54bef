// Package files extracts uploads and signatures, which responses store inline as data
// URLs.
package files

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

// DefaultName is used for data URLs without a name parameter; these are mostly
// signatures.
const DefaultName = "signature.png"

type File struct {
	Name     string
	MimeType string
	Content  []byte
}

// Decode parses "data:<mime>[;name=<name>];base64,<data>". Anything else is
// model.ErrNotFound.
func Decode(dataURL string) (*File, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, model.ErrNotFound
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, model.ErrNotFound
	}

	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return nil, model.ErrNotFound
	}
	f := &File{Name: DefaultName, MimeType: params[0]}
	for _, p := range params[1 : len(params)-1] {
		if name, ok := strings.CutPrefix(p, "name="); ok && name != "" {
			f.Name = name
		}
	}
	if f.MimeType == "" {
		f.MimeType = "application/octet-stream"
	}

	content, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		content, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
	}
	if err != nil {
		return nil, errors.Wrap(model.ErrNotFound, err.Error())
	}
	f.Content = content
	return f, nil
}

// Lookup returns the data URL stored in a response field, or the index-th one when the
// field holds a list.
func Lookup(payload map[string]any, field string, index *int) (string, error) {
	value, ok := payload[field]
	if !ok {
		return "", model.ErrNotFound
	}
	if index != nil {
		items, ok := value.([]any)
		if !ok || *index < 0 || *index >= len(items) {
			return "", model.ErrNotFound
		}
		value = items[*index]
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", model.ErrNotFound
	}
	return s, nil
}

// ContentDisposition names the download after the response it belongs to.
func ContentDisposition(responseID int64, f *File) string {
	return fmt.Sprintf(`inline; filename="%d-%s"`, responseID, strings.ReplaceAll(f.Name, `"`, ""))
}
