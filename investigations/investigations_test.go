package investigations_test

import (
	"context"
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/investigations"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/policy"
	"github.com/mbolis/newsroom-forms/roles"
	"github.com/mbolis/newsroom-forms/testutil"
)

func service(t *testing.T) (*investigations.Service, *database.Store) {
	t.Helper()
	store := testutil.OpenStore(t)
	authz, err := policy.NewAuthorizer()
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	return investigations.NewService(store, roles.NewChecker(store, authz)), store
}

func create(t *testing.T, svc *investigations.Service, owner *model.User, name string) *model.Investigation {
	t.Helper()
	inv := &model.Investigation{Name: name}
	if err := svc.Create(context.Background(), owner, inv); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return inv
}

func TestCreateMakesGroupsAndOwner(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)

	inv := create(t, svc, owner, "Bananen Überprüfung")
	if inv.Slug != "bananen-uberprufung" {
		t.Fatalf("slug = %q", inv.Slug)
	}

	groups, err := store.RoleGroups(ctx, inv.ID)
	if err != nil || len(groups) != 4 {
		t.Fatalf("groups = %v, %v", groups, err)
	}
	role, ok, _ := roles.RoleOf(ctx, store, inv.ID, owner.ID)
	if !ok || role != model.RoleOwner {
		t.Fatalf("creator role = %v, %v", role, ok)
	}

	listed, _ := svc.List(ctx, owner)
	if len(listed) != 1 || listed[0].ID != inv.ID {
		t.Fatalf("List = %+v", listed)
	}
	stranger := testutil.User(t, store)
	if listed, _ = svc.List(ctx, stranger); len(listed) != 0 {
		t.Fatalf("stranger sees %+v", listed)
	}
}

func TestCreateIsAtomic(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)
	create(t, svc, owner, "Duplicate")

	var ve *model.ValidationError
	err := svc.Create(ctx, owner, &model.Investigation{Name: "Duplicate"})
	if !errors.As(err, &ve) || ve.Reason != "duplicate_slug" {
		t.Fatalf("duplicate = %v", err)
	}
	if err = svc.Create(ctx, nil, &model.Investigation{Name: "Anon"}); !errors.Is(err, model.ErrUnauthenticated) {
		t.Fatalf("anonymous create = %v", err)
	}

	// a ghost creator makes the owner membership fail after the insert
	err = svc.Create(ctx, &model.User{ID: 9999}, &model.Investigation{Name: "Ghost"})
	if err == nil {
		t.Fatalf("ghost creator accepted")
	}
	if _, err = store.InvestigationBySlug(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("investigation survived a failed create: %v", err)
	}
}

func TestGetDistinguishesMissingFromForbidden(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)
	stranger := testutil.User(t, store)
	inv := create(t, svc, owner, "Secret")

	if _, err := svc.Get(ctx, stranger, inv.Slug, roles.ViewInvestigation); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("stranger = %v", err)
	}
	if _, err := svc.Get(ctx, stranger, "nope", roles.ViewInvestigation); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing = %v", err)
	}
	if _, err := svc.Get(ctx, nil, inv.Slug, roles.ViewInvestigation); !errors.Is(err, model.ErrUnauthenticated) {
		t.Fatalf("anonymous = %v", err)
	}
	if _, err := svc.Get(ctx, testutil.Superuser(t, store), inv.Slug, roles.MasterInvestigation); err != nil {
		t.Fatalf("superuser = %v", err)
	}
}

func TestUpdateAndDeletePermissions(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)
	admin := testutil.User(t, store)
	editor := testutil.User(t, store)
	inv := create(t, svc, owner, "Rights")
	testutil.Member(t, store, inv, admin, model.RoleAdmin)
	testutil.Member(t, store, inv, editor, model.RoleEditor)

	changed := *inv
	changed.Name = "Rights renamed"
	changed.Slug = "ignored"
	if err := svc.Update(ctx, editor, &changed); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("editor update = %v", err)
	}
	if err := svc.Update(ctx, admin, &changed); err != nil {
		t.Fatalf("admin update = %v", err)
	}
	stored, _ := store.Investigation(ctx, inv.ID)
	if stored.Name != "Rights renamed" || stored.Slug != inv.Slug {
		t.Fatalf("stored = %+v", stored)
	}

	if err := svc.Delete(ctx, admin, inv); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("admin delete = %v", err)
	}
	if err := svc.Delete(ctx, owner, inv); err != nil {
		t.Fatalf("owner delete = %v", err)
	}
}

func TestFormsAndInstances(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)
	viewer := testutil.User(t, store)
	inv := create(t, svc, owner, "Forms")
	other := create(t, svc, owner, "Other")
	testutil.Member(t, store, inv, viewer, model.RoleViewer)

	f := &model.Form{Name: "Banana consumption"}
	if err := svc.CreateForm(ctx, viewer, inv, f); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("viewer create form = %v", err)
	}
	if err := svc.CreateForm(ctx, owner, inv, f); err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	if f.Slug != "banana-consumption" {
		t.Fatalf("form slug = %q", f.Slug)
	}
	if _, err := svc.Form(ctx, other, f.Slug); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("form through another investigation = %v", err)
	}

	fi := &model.FormInstance{}
	fi.FormJSON = json.RawMessage(testutil.SimpleFormJSON)
	if err := svc.CreateInstance(ctx, owner, f, fi); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	bad := &model.FormInstance{}
	bad.FormJSON = json.RawMessage(`[{"schema": 42}]`)
	var ve *model.ValidationError
	if err := svc.CreateInstance(ctx, owner, f, bad); !errors.As(err, &ve) {
		t.Fatalf("broken schema = %v", err)
	}

	tmpl := &model.FormInstanceTemplate{Name: "Contact"}
	tmpl.FormJSON = json.RawMessage(testutil.SimpleFormJSON)
	if err := svc.CreateTemplate(ctx, owner, tmpl); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("non-superuser template = %v", err)
	}
	if err := svc.CreateTemplate(ctx, testutil.Superuser(t, store), tmpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	copied, err := svc.CreateInstanceFromTemplate(ctx, owner, f, tmpl.ID)
	if err != nil {
		t.Fatalf("CreateInstanceFromTemplate: %v", err)
	}
	if copied.Version != 1 {
		t.Fatalf("version = %d", copied.Version)
	}

	versions, err := svc.Instances(ctx, viewer, f)
	if err != nil || len(versions) != 2 {
		t.Fatalf("Instances = %v, %v", versions, err)
	}
}

func TestTags(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)
	viewer := testutil.User(t, store)
	editor := testutil.User(t, store)
	inv := create(t, svc, owner, "Tags")
	other := create(t, svc, owner, "Tags elsewhere")
	testutil.Member(t, store, inv, viewer, model.RoleViewer)
	testutil.Member(t, store, inv, editor, model.RoleEditor)

	if _, err := svc.CreateTag(ctx, viewer, inv, "Ripe"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("viewer create = %v", err)
	}
	first, err := svc.CreateTag(ctx, editor, inv, "Ripe")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	second, err := svc.CreateTag(ctx, owner, other, "ripe!")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if first.Slug != "ripe" || second.Slug != "ripe-2" {
		t.Fatalf("slugs = %q, %q", first.Slug, second.Slug)
	}

	tags, err := svc.Tags(ctx, viewer, inv)
	if err != nil || len(tags) != 1 {
		t.Fatalf("Tags = %v, %v", tags, err)
	}

	if _, err = svc.RenameTag(ctx, editor, second.ID, "Overripe"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("rename foreign tag = %v", err)
	}
	renamed, err := svc.RenameTag(ctx, editor, first.ID, "Very ripe")
	if err != nil || renamed.Name != "Very ripe" || renamed.Slug != "ripe" {
		t.Fatalf("RenameTag = %+v, %v", renamed, err)
	}
	if err = svc.DeleteTag(ctx, editor, first.ID); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if err = svc.DeleteTag(ctx, editor, first.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestMembers(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)
	target := testutil.User(t, store)
	inv := create(t, svc, owner, "Members")

	u, err := svc.SetRole(ctx, owner, inv, target.Email, model.RoleEditor)
	if err != nil || u.ID != target.ID {
		t.Fatalf("SetRole = %v, %v", u, err)
	}
	var ve *model.ValidationError
	if _, err = svc.SetRole(ctx, owner, inv, "nobody@example.com", model.RoleEditor); !errors.As(err, &ve) {
		t.Fatalf("unknown user = %v", err)
	}

	editors, _ := svc.GroupUsers(ctx, target, inv, model.RoleEditor)
	if len(editors) != 1 {
		t.Fatalf("editors = %v", editors)
	}
	assignees, _ := svc.Assignees(ctx, target, inv)
	if len(assignees) != 2 {
		t.Fatalf("assignees = %v", assignees)
	}

	if err = svc.RemoveMember(ctx, owner, inv, target.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, err = svc.Members(ctx, target, inv); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("removed member lists members: %v", err)
	}
}

func TestInvitations(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)
	editor := testutil.User(t, store)
	inv := create(t, svc, owner, "Invites")
	testutil.Member(t, store, inv, editor, model.RoleEditor)

	if _, err := svc.Invite(ctx, editor, inv, "new@example.com"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("editor invite = %v", err)
	}

	invitation, err := svc.Invite(ctx, owner, inv, " New@Example.com ")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	invitee, err := store.UserByEmail(ctx, "new@example.com")
	if err != nil || invitation.UserID != invitee.ID {
		t.Fatalf("invited user = %v, %v", invitee, err)
	}

	var ve *model.ValidationError
	if _, err = svc.Invite(ctx, owner, inv, "new@example.com"); !errors.As(err, &ve) || ve.Reason != "duplicate_invitation" {
		t.Fatalf("duplicate invite = %v", err)
	}
	if _, err = svc.Invite(ctx, owner, inv, editor.Email); !errors.As(err, &ve) || ve.Reason != "already_member" {
		t.Fatalf("member invite = %v", err)
	}

	pending, _ := svc.PendingInvitations(ctx, invitee)
	if len(pending) != 1 {
		t.Fatalf("pending = %v", pending)
	}
	if err = svc.AnswerInvitation(ctx, editor, invitation.ID, true); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("answer for someone else = %v", err)
	}
	if err = svc.AnswerInvitation(ctx, invitee, invitation.ID, true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	role, ok, _ := roles.RoleOf(ctx, store, inv.ID, invitee.ID)
	if !ok || role != model.RoleViewer {
		t.Fatalf("role after accepting = %v, %v", role, ok)
	}
	if _, err = store.Invitation(ctx, invitation.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("accepted invitation kept: %v", err)
	}
}

func TestDeclineAndDeleteInvitation(t *testing.T) {
	svc, store := service(t)
	ctx := context.Background()
	owner := testutil.User(t, store)
	a := testutil.User(t, store)
	b := testutil.User(t, store)
	inv := create(t, svc, owner, "Declines")

	first, _ := svc.Invite(ctx, owner, inv, a.Email)
	second, _ := svc.Invite(ctx, owner, inv, b.Email)

	if err := svc.AnswerInvitation(ctx, a, first.ID, false); err != nil {
		t.Fatalf("decline: %v", err)
	}
	var ve *model.ValidationError
	if err := svc.AnswerInvitation(ctx, a, first.ID, true); !errors.As(err, &ve) {
		t.Fatalf("answer twice = %v", err)
	}
	if _, ok, _ := roles.RoleOf(ctx, store, inv.ID, a.ID); ok {
		t.Fatalf("declining user became a member")
	}

	if err := svc.DeleteInvitation(ctx, b, second.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("invitee deletes invitation = %v", err)
	}
	if err := svc.DeleteInvitation(ctx, owner, second.ID); err != nil {
		t.Fatalf("DeleteInvitation: %v", err)
	}

	open, _ := svc.Invitations(ctx, owner, inv)
	if len(open) != 0 {
		t.Fatalf("open invitations = %+v", open)
	}
}
