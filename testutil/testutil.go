// Package testutil opens throwaway databases and builds the fixtures package tests share.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/model"
	"golang.org/x/crypto/bcrypt"
)

// Password is the clear text password of every fixture user.
const Password = "hunter2"

var seq int64

// OpenStore creates a migrated SQLite database in a temporary directory.
func OpenStore(t *testing.T) *database.Store {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return database.NewStore(db)
}

func next() int64 {
	return atomic.AddInt64(&seq, 1)
}

// User creates a user with a unique email and Password.
func User(t *testing.T, store *database.Store) *model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	n := next()
	u := &model.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		FirstName:    "User",
		LastName:     fmt.Sprint(n),
		PasswordHash: hash,
	}
	if err = store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

func Superuser(t *testing.T, store *database.Store) *model.User {
	t.Helper()

	u := &model.User{Email: fmt.Sprintf("admin%d@example.com", next()), IsSuperuser: true}
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	u.PasswordHash = hash
	if err = store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to create superuser: %v", err)
	}
	return u
}

// Investigation inserts a bare investigation. It has no role groups; tests that need
// them go through the investigations or roles packages.
func Investigation(t *testing.T, store *database.Store) *model.Investigation {
	t.Helper()

	n := next()
	inv := &model.Investigation{
		Name: fmt.Sprintf("Investigation %d", n),
		Slug: fmt.Sprintf("investigation-%d", n),
	}
	if err := store.InsertInvestigation(context.Background(), inv); err != nil {
		t.Fatalf("Failed to create investigation: %v", err)
	}
	return inv
}

func Form(t *testing.T, store *database.Store, inv *model.Investigation) *model.Form {
	t.Helper()

	n := next()
	f := &model.Form{
		Name:            fmt.Sprintf("Form %d", n),
		Slug:            fmt.Sprintf("form-%d", n),
		InvestigationID: inv.ID,
	}
	if err := store.InsertForm(context.Background(), f); err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}
	return f
}

// SimpleFormJSON is a single step asking for a name and an email.
const SimpleFormJSON = `[{"schema": {"type": "object", "slug": "first", "properties": {
	"name": {"type": "string"},
	"email": {"type": "string", "format": "email"}
}}}]`

// Instance creates the next version of f with the given step list.
func Instance(t *testing.T, store *database.Store, f *model.Form, formJSON string) *model.FormInstance {
	t.Helper()

	fi := &model.FormInstance{
		FormID: f.ID,
		FormSchema: model.FormSchema{
			FormJSON:     json.RawMessage(formJSON),
			UISchemaJSON: json.RawMessage(`{}`),
		},
	}
	if err := store.CreateInstance(context.Background(), fi); err != nil {
		t.Fatalf("Failed to create form instance: %v", err)
	}
	return fi
}

// Response submits payload against fi at the given time.
func Response(t *testing.T, store *database.Store, fi *model.FormInstance, payload map[string]any, at time.Time) *model.FormResponse {
	t.Helper()

	r := &model.FormResponse{
		FormInstanceID: fi.ID,
		JSON:           payload,
		SubmissionDate: at,
	}
	if err := store.InsertResponse(context.Background(), r); err != nil {
		t.Fatalf("Failed to create response: %v", err)
	}
	r.FormID = fi.FormID
	return r
}

// Tag creates a tag on the investigation.
func Tag(t *testing.T, store *database.Store, inv *model.Investigation, name string) *model.Tag {
	t.Helper()

	tag := &model.Tag{
		Name:            name,
		Slug:            fmt.Sprintf("%s-%d", model.Slugify(name), next()),
		InvestigationID: inv.ID,
	}
	if err := store.InsertTag(context.Background(), tag); err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	return tag
}

// Member puts u in the role group of inv, creating the group when needed.
func Member(t *testing.T, store *database.Store, inv *model.Investigation, u *model.User, role model.Role) {
	t.Helper()

	ctx := context.Background()
	g := &model.RoleGroup{InvestigationID: inv.ID, Role: role, Name: model.GroupName(inv.Name, role)}
	if err := store.InsertRoleGroup(ctx, g); err != nil {
		t.Fatalf("Failed to create role group: %v", err)
	}
	if _, err := store.RemoveMemberships(ctx, inv.ID, u.ID); err != nil {
		t.Fatalf("Failed to clear memberships: %v", err)
	}
	if err := store.AddMember(ctx, g, u.ID); err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}
}
