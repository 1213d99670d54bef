package roles_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/policy"
	"github.com/mbolis/newsroom-forms/roles"
	"github.com/mbolis/newsroom-forms/testutil"
)

func checker(t *testing.T, store *database.Store) *roles.Checker {
	t.Helper()
	authz, err := policy.NewAuthorizer()
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	return roles.NewChecker(store, authz)
}

func TestCreateAllForIsIdempotent(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)

	first, err := roles.CreateAllFor(ctx, store, inv)
	if err != nil {
		t.Fatalf("CreateAllFor: %v", err)
	}
	second, err := roles.CreateAllFor(ctx, store, inv)
	if err != nil {
		t.Fatalf("CreateAllFor again: %v", err)
	}

	groups, err := store.RoleGroups(ctx, inv.ID)
	if err != nil {
		t.Fatalf("RoleGroups: %v", err)
	}
	if len(groups) != 4 {
		t.Fatalf("got %d groups, want 4", len(groups))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("group %s recreated", first[i].Role)
		}
	}
	if first[2].Name != inv.Name+" - Editors" {
		t.Fatalf("group name = %q", first[2].Name)
	}
}

func TestAddUserKeepsOneRole(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)
	u := testutil.User(t, store)

	// no groups exist yet: AddUser creates them
	if err := roles.AddUser(ctx, store, inv, u.ID, model.RoleViewer); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := roles.AddUser(ctx, store, inv, u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("AddUser again: %v", err)
	}

	role, ok, err := roles.RoleOf(ctx, store, inv.ID, u.ID)
	if err != nil || !ok || role != model.RoleAdmin {
		t.Fatalf("RoleOf = %v, %v, %v", role, ok, err)
	}
	viewers, _ := roles.GetUsers(ctx, store, inv.ID, model.RoleViewer)
	if len(viewers) != 0 {
		t.Fatalf("user still a viewer")
	}
	admins, _ := roles.GetUsers(ctx, store, inv.ID, model.RoleAdmin)
	if len(admins) != 1 || admins[0].ID != u.ID {
		t.Fatalf("admins = %v", admins)
	}
}

func TestMembershipIsPerInvestigation(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	a := testutil.Investigation(t, store)
	b := testutil.Investigation(t, store)
	u := testutil.User(t, store)

	if err := roles.AddUser(ctx, store, a, u.ID, model.RoleOwner); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := roles.AddUser(ctx, store, b, u.ID, model.RoleViewer); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	c := checker(t, store)
	if ok, _ := c.CanMaster(ctx, u, a.ID); !ok {
		t.Fatalf("owner of a cannot master a")
	}
	if ok, _ := c.CanManage(ctx, u, b.ID); ok {
		t.Fatalf("viewer of b can manage b")
	}
}

func TestChangeRoleOwnerRules(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)
	c := checker(t, store)

	owner := testutil.User(t, store)
	admin := testutil.User(t, store)
	editor := testutil.User(t, store)
	target := testutil.User(t, store)
	for u, role := range map[*model.User]model.Role{owner: model.RoleOwner, admin: model.RoleAdmin, editor: model.RoleEditor} {
		if err := roles.AddUser(ctx, store, inv, u.ID, role); err != nil {
			t.Fatalf("AddUser: %v", err)
		}
	}

	tests := []struct {
		name    string
		actor   *model.User
		userID  int64
		role    model.Role
		wantErr error
	}{
		{"editor cannot add users", editor, target.ID, model.RoleViewer, model.ErrForbidden},
		{"admin adds viewer", admin, target.ID, model.RoleViewer, nil},
		{"admin cannot grant owner", admin, target.ID, model.RoleOwner, model.ErrForbidden},
		{"admin cannot demote owner", admin, owner.ID, model.RoleViewer, model.ErrForbidden},
		{"owner grants owner", owner, target.ID, model.RoleOwner, nil},
		{"owner demotes owner", owner, target.ID, model.RoleEditor, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := roles.ChangeRole(ctx, store, c, tt.actor, inv, tt.userID, tt.role)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ChangeRole = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				role, _, _ := roles.RoleOf(ctx, store, inv.ID, tt.userID)
				if role != tt.role {
					t.Fatalf("role = %s, want %s", role, tt.role)
				}
			}
		})
	}
}

func TestRevoke(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)
	c := checker(t, store)

	owner := testutil.User(t, store)
	admin := testutil.User(t, store)
	viewer := testutil.User(t, store)
	_ = roles.AddUser(ctx, store, inv, owner.ID, model.RoleOwner)
	_ = roles.AddUser(ctx, store, inv, admin.ID, model.RoleAdmin)
	_ = roles.AddUser(ctx, store, inv, viewer.ID, model.RoleViewer)

	if err := roles.Revoke(ctx, store, c, admin, inv, owner.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("admin removed owner: %v", err)
	}
	if err := roles.Revoke(ctx, store, c, admin, inv, viewer.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := roles.Revoke(ctx, store, c, admin, inv, viewer.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second revoke = %v", err)
	}
}

func TestMembersAndAssignees(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)

	viewer := testutil.User(t, store)
	editor := testutil.User(t, store)
	owner := testutil.User(t, store)
	_ = roles.AddUser(ctx, store, inv, viewer.ID, model.RoleViewer)
	_ = roles.AddUser(ctx, store, inv, editor.ID, model.RoleEditor)
	_ = roles.AddUser(ctx, store, inv, owner.ID, model.RoleOwner)

	members, err := roles.Members(ctx, store, inv.ID)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 3 || members[0].Role != model.RoleOwner || members[2].Role != model.RoleViewer {
		t.Fatalf("members = %+v", members)
	}

	assignees, err := roles.Assignees(ctx, store, inv.ID)
	if err != nil {
		t.Fatalf("Assignees: %v", err)
	}
	if len(assignees) != 2 {
		t.Fatalf("assignees = %v", assignees)
	}
	for _, u := range assignees {
		if u.ID == viewer.ID {
			t.Fatalf("viewer listed as assignee")
		}
	}
}
