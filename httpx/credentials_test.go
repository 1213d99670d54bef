package httpx

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/testutil"
)

func TestValidateUser(t *testing.T) {
	store := testutil.OpenStore(t)
	cs := CredentialsVerifier(store)
	u := testutil.User(t, store)
	invited := &model.User{Email: "invited@example.org"}
	if err := store.CreateUser(context.Background(), invited); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/api/login", nil)

	if err := cs.ValidateUser(u.Email, testutil.Password, "", req); err != nil {
		t.Errorf("Expected valid credentials, got %v", err)
	}
	if err := cs.ValidateUser(u.Email, "nope", "", req); err == nil {
		t.Error("Expected a wrong password to fail")
	}
	if err := cs.ValidateUser("ghost@example.org", testutil.Password, "", req); err == nil {
		t.Error("Expected an unknown user to fail")
	}
	if err := cs.ValidateUser(invited.Email, "", "", req); err == nil {
		t.Error("Expected a user without password to fail")
	}
}

func TestAddClaims(t *testing.T) {
	store := testutil.OpenStore(t)
	cs := CredentialsVerifier(store)
	req := httptest.NewRequest("POST", "/api/login", nil)

	claims, err := cs.AddClaims("", testutil.User(t, store).Email, "", "", req)
	if err != nil || claims["roles"] != "user" {
		t.Errorf("Expected user role, got %v %v", claims, err)
	}
	claims, err = cs.AddClaims("", testutil.Superuser(t, store).Email, "", "", req)
	if err != nil || claims["roles"] != "superuser" {
		t.Errorf("Expected superuser role, got %v %v", claims, err)
	}
}

func TestTokenIDsAreSingleUseAndExpire(t *testing.T) {
	store := testutil.OpenStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cs := &credentialsVerifier{store, func() time.Time { return now }}

	if err := cs.StoreTokenID("", "a@example.org", "t1", "r1"); err != nil {
		t.Fatal(err)
	}
	if err := cs.ValidateTokenID("", "a@example.org", "t1", "r1"); err != nil {
		t.Errorf("Expected stored token to validate, got %v", err)
	}
	if err := cs.ValidateTokenID("", "a@example.org", "t1", "r1"); err == nil {
		t.Error("Expected a used token to fail")
	}

	if err := cs.StoreTokenID("", "a@example.org", "t2", "r2"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(RefreshTTL + time.Hour)
	if err := cs.ValidateTokenID("", "a@example.org", "t2", "r2"); err == nil {
		t.Error("Expected an expired token to fail")
	}
}
