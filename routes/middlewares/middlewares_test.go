package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mbolis/newsroom-forms/model"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func TestSuperuser(t *testing.T) {
	tests := []struct {
		name   string
		user   *model.User
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"user", &model.User{ID: 1}, http.StatusForbidden},
		{"superuser", &model.User{ID: 2, IsSuperuser: true}, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/templates", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			Superuser(http.HandlerFunc(ok)).ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestCurrentUserWithoutAuthentication(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if u := CurrentUser(req.Context()); u != nil {
		t.Errorf("Expected no user, got %+v", u)
	}
}

func TestCookieAuthPassesThrough(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		header  string
		cookies []*http.Cookie
	}{
		{"post", "POST", "", []*http.Cookie{{Name: "access_token", Value: "x"}}},
		{"authorization header", "GET", "Bearer abc", []*http.Cookie{{Name: "access_token", Value: "x"}}},
		{"no cookies", "GET", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.Header.Get("authorization")
				ok(w, r)
			})

			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.header != "" {
				req.Header.Set("authorization", tt.header)
			}
			for _, c := range tt.cookies {
				req.AddCookie(c)
			}
			rec := httptest.NewRecorder()
			CookieAuth(nil)(next).ServeHTTP(rec, req)

			if rec.Code != http.StatusTeapot {
				t.Errorf("Expected the handler to run, got %d", rec.Code)
			}
			if seen != tt.header {
				t.Errorf("Expected authorization %q, got %q", tt.header, seen)
			}
		})
	}
}

func TestCookieAuthUsesAccessToken(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("authorization")
		w.Header().Set("x-answer", "42")
		ok(w, r)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "abc"})
	rec := httptest.NewRecorder()
	CookieAuth(nil)(next).ServeHTTP(rec, req)

	if seen != "Bearer abc" {
		t.Errorf("Expected the cookie as bearer token, got %q", seen)
	}
	if rec.Code != http.StatusTeapot || rec.Header().Get("x-answer") != "42" {
		t.Errorf("Expected the buffered response to be flushed, got %d %v", rec.Code, rec.Header())
	}
}
