package files

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mbolis/newsroom-forms/model"
)

const gif = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAQAIBRAA7"

func TestDecode(t *testing.T) {
	f, err := Decode("data:image/gif;name=spacer.gif;base64," + gif)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Name != "spacer.gif" || f.MimeType != "image/gif" || !bytes.HasPrefix(f.Content, []byte("GIF89")) {
		t.Fatalf("file = %s %s %q", f.Name, f.MimeType, f.Content[:5])
	}
}

func TestDecodeWithoutName(t *testing.T) {
	f, err := Decode("data:image/gif;base64," + gif)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Name != DefaultName {
		t.Fatalf("name = %q", f.Name)
	}
}

func TestDecodeNotAFile(t *testing.T) {
	for _, s := range []string{
		"I am just a string, not a base64 file...",
		"data:image/png,plain",
		"data:image/png;base64,@@@",
	} {
		if _, err := Decode(s); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Decode(%q) = %v", s, err)
		}
	}
}

func TestLookup(t *testing.T) {
	payload := map[string]any{
		"signature": "data:image/png;base64,abc1",
		"photos":    []any{"data:a", "data:b"},
		"age":       float64(3),
	}
	idx := func(i int) *int { return &i }

	tests := []struct {
		field string
		index *int
		want  string
	}{
		{"signature", nil, "data:image/png;base64,abc1"},
		{"photos", idx(1), "data:b"},
		{"photos", idx(2), ""},
		{"photos", nil, ""},
		{"signature", idx(0), ""},
		{"age", nil, ""},
		{"missing", nil, ""},
	}
	for _, tt := range tests {
		got, err := Lookup(payload, tt.field, tt.index)
		if tt.want == "" {
			if !errors.Is(err, model.ErrNotFound) {
				t.Errorf("Lookup(%s, %v) = %q, %v", tt.field, tt.index, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Lookup(%s, %v) = %q, %v", tt.field, tt.index, got, err)
		}
	}
}

func TestContentDisposition(t *testing.T) {
	got := ContentDisposition(12, &File{Name: "filename.png"})
	if got != `inline; filename="12-filename.png"` {
		t.Fatalf("got %s", got)
	}
}
