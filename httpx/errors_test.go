package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mbolis/newsroom-forms/model"
	pkgerrors "github.com/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"unauthenticated", model.ErrUnauthenticated, http.StatusUnauthorized, ""},
		{"forbidden", model.ErrForbidden, http.StatusForbidden, ""},
		{"not found", pkgerrors.Wrap(model.ErrNotFound, "db.get_form"), http.StatusNotFound, ""},
		{"invalid", model.Invalid("empty_comment", "comment text is required"), http.StatusBadRequest, `"reason":"empty_comment"`},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/x", nil)
			rec := httptest.NewRecorder()
			WriteError(rec, req, "test", tt.err)

			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("Expected body to contain %q, got %q", tt.body, rec.Body)
			}
			if strings.Contains(rec.Body.String(), "disk on fire") {
				t.Error("Internal error leaked to the client")
			}
		})
	}
}

func TestResponseBuffer(t *testing.T) {
	buf := NewResponseBuffer()
	if buf.Body() != nil {
		t.Error("Expected no body before writing")
	}
	buf.Header().Set("x-test", "1")
	buf.WriteHeader(http.StatusCreated)
	buf.Write([]byte("hello"))

	rec := httptest.NewRecorder()
	if err := buf.Flush(rec); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated || rec.Body.String() != "hello" || rec.Header().Get("x-test") != "1" {
		t.Errorf("Unexpected flushed response %d %q %v", rec.Code, rec.Body, rec.Header())
	}
}
