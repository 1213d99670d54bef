package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	json "github.com/goccy/go-json"
	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/httpx"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
)

type contextKey struct{ name string }

var userContext = &contextKey{"user"}

// CurrentUser is the user the request was authenticated as, or nil.
func CurrentUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(userContext).(*model.User)
	return u
}

// WithUser returns a context authenticated as u.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userContext, u)
}

// Authenticated middleware to check the OAuth token and load the user it was issued to.
func Authenticated(store *database.Store, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), loadUser(store)).Handler(next)
	}
}

func loadUser(store *database.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, _ := r.Context().Value(oauth.CredentialContext).(string)
			if email == "" {
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.credential")
				return
			}

			u, err := store.UserByEmail(r.Context(), email)
			if errors.Is(err, model.ErrNotFound) {
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "auth.unknown_user")
				return
			}
			if err != nil {
				httpx.LogInternalError(w, "auth.load_user", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// Superuser middleware to let only superusers through. It runs after Authenticated.
func Superuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := CurrentUser(r.Context())
		if u == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if !u.IsSuperuser {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CookieAuth lets browsers open downloads with the tokens kept in cookies. Requests
// that carry their own authorization header are left alone. An expired access token
// is renewed with the refresh cookie.
func CookieAuth(bearerServer *oauth.BearerServer) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "GET" || r.Header.Get("authorization") != "" {
				h.ServeHTTP(w, r)
				return
			}

			token, err := r.Cookie("access_token")
			if err != nil && !errors.Is(err, http.ErrNoCookie) {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if err == nil {
				r.Header.Set("authorization", "Bearer "+token.Value)
				buf := httpx.NewResponseBuffer()
				h.ServeHTTP(buf, r)
				if buf.Status() != http.StatusUnauthorized {
					buf.Flush(w)
					return
				}
				r.Header.Del("authorization")
			}

			// token was empty or unauthorized
			refreshToken, err := r.Cookie("refresh_token")
			if err != nil {
				if !errors.Is(err, http.ErrNoCookie) {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				h.ServeHTTP(w, r)
				return
			}

			// produce new token by calling bearer server
			body := url.Values{
				"grant_type":    {"refresh_token"},
				"refresh_token": {refreshToken.Value},
			}
			req, err := http.NewRequestWithContext(r.Context(), "POST", "/", strings.NewReader(body.Encode()))
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			req.Header.Set("content-type", "application/x-www-form-urlencoded")
			req.Header.Set("content-length", strconv.Itoa(len(body.Encode())))

			resp := httpx.NewResponseBuffer()
			bearerServer.UserCredentials(resp, req)
			if resp.Status() == http.StatusUnauthorized {
				http.SetCookie(w, &http.Cookie{
					Path:     "/",
					Name:     "refresh_token",
					Value:    "",
					MaxAge:   -1,
					SameSite: http.SameSiteNoneMode,
				})
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "cookie_auth.refresh")
				return
			}
			if resp.Status() != 0 && resp.Status() != http.StatusOK {
				http.Error(w, http.StatusText(resp.Status()), resp.Status())
				return
			}

			var responseBody struct {
				AccessToken  string  `json:"access_token"`
				RefreshToken string  `json:"refresh_token"`
				ExpiresIn    float64 `json:"expires_in"`
			}
			err = json.Unmarshal(resp.Body(), &responseBody)
			if err != nil {
				httpx.LogInternalError(w, "cookie_auth.parse_token", err)
				return
			}

			token = &http.Cookie{
				Path:     "/",
				Name:     "access_token",
				Value:    responseBody.AccessToken,
				MaxAge:   int(responseBody.ExpiresIn),
				SameSite: http.SameSiteNoneMode,
			}
			http.SetCookie(w, token)

			refreshToken = &http.Cookie{
				Path:     "/",
				Name:     "refresh_token",
				Value:    responseBody.RefreshToken,
				MaxAge:   60 * 60 * 24 * 365,
				SameSite: http.SameSiteNoneMode,
			}
			http.SetCookie(w, refreshToken)

			r.Header.Set("authorization", "Bearer "+token.Value)
			h.ServeHTTP(w, r)
		})
	}
}
