package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/oauth"
	"github.com/mbolis/newsroom-forms/config"
	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/log"
	"golang.org/x/crypto/bcrypt"
)

// RefreshTTL is how long a refresh token stays usable.
const RefreshTTL = 8760 * time.Hour

var errNoPassword = errors.New("user has no password")

type credentialsVerifier struct {
	store *database.Store
	now   func() time.Time
}

func CredentialsVerifier(store *database.Store) oauth.CredentialsVerifier {
	return &credentialsVerifier{store, time.Now}
}

// NewBearerServer issues tokens for users logging in with their email and password.
func NewBearerServer(store *database.Store, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(store), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	u, err := cs.store.UserByEmail(r.Context(), username)
	if err != nil {
		return err
	}
	// Invited users have no password until they set one.
	if len(u.PasswordHash) == 0 {
		return errNoPassword
	}

	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password))
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.store.StoreToken(context.Background(), credential, tokenID, refreshTokenID, cs.now().Add(RefreshTTL))
}
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	expiration, err := cs.store.ConsumeToken(context.Background(), credential, tokenID, refreshTokenID)
	if err != nil {
		log.Debugf("refresh.consume_token: %s", err)
		return errors.New("could not refresh")
	}

	if expiration.Before(cs.now()) {
		return errors.New("could not refresh")
	}
	return nil
}
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	u, err := cs.store.UserByEmail(ctx, credential)
	if err != nil {
		return nil, err
	}
	if u.IsSuperuser {
		return map[string]string{"roles": "superuser"}, nil
	}
	return map[string]string{"roles": "user"}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
