package permission_test

import (
	"testing"

	"lauschr/internal/config"
	"lauschr/internal/permission"
)

type membership struct {
	owner   string
	members map[string]string
}

func (m membership) Owner() string { return m.owner }

func (m membership) CollaboratorRole(userID string) (string, bool) {
	role, ok := m.members[userID]
	return role, ok
}

func testFeed() membership {
	return membership{
		owner: "usr_owner",
		members: map[string]string{
			"usr_editor":      "editor",
			"usr_contributor": "contributor",
			"usr_viewer":      "viewer",
			"usr_bogus":       "superuser",
			"usr_sneaky":      "owner",
		},
	}
}

func TestRoleResolution(t *testing.T) {
	r := permission.NewResolver(nil)
	feed := testFeed()
	cases := map[string]permission.Role{
		"usr_owner":       permission.RoleOwner,
		"usr_editor":      permission.RoleEditor,
		"usr_contributor": permission.RoleContributor,
		"usr_viewer":      permission.RoleViewer,
		"usr_bogus":       permission.RoleNone,
		"usr_sneaky":      permission.RoleNone,
		"usr_stranger":    permission.RoleNone,
		"":                permission.RoleNone,
	}
	for userID, want := range cases {
		if got := r.Role(feed, userID); got != want {
			t.Fatalf("Role(%q) = %q, want %q", userID, got, want)
		}
	}
}

func TestCanMatchesTableExactly(t *testing.T) {
	r := permission.NewResolver(nil)
	feed := testFeed()
	table := config.DefaultPermissions()
	users := map[string]string{
		"usr_owner":       config.RoleOwner,
		"usr_editor":      config.RoleEditor,
		"usr_contributor": config.RoleContributor,
		"usr_viewer":      config.RoleViewer,
	}
	for userID, roleName := range users {
		row := table[roleName]
		want := map[permission.Action]bool{
			permission.ActionUpload:         row.CanUpload,
			permission.ActionEdit:           row.CanEdit,
			permission.ActionDelete:         row.CanDelete,
			permission.ActionInvite:         row.CanInvite,
			permission.ActionManageSettings: row.CanManageSettings,
			permission.ActionDeleteFeed:     row.CanDeleteFeed,
		}
		for _, action := range permission.Actions {
			if got := r.Can(action, feed, userID); got != want[action] {
				t.Fatalf("Can(%s, %s) = %v, want %v", action, roleName, got, want[action])
			}
		}
		if r.Can("can_fly", feed, userID) {
			t.Fatalf("unknown action must be denied for %s", roleName)
		}
	}
}

func TestStrangerHasNoCapabilities(t *testing.T) {
	r := permission.NewResolver(nil)
	got := r.Capabilities(testFeed(), "usr_stranger")
	if got != (permission.Capabilities{Role: permission.RoleNone}) {
		t.Fatalf("expected empty capabilities, got %+v", got)
	}
	if got.Role.String() != "none" {
		t.Fatalf("expected none label, got %q", got.Role.String())
	}
	if r.Capabilities(nil, "usr_owner").Role != permission.RoleNone {
		t.Fatal("nil membership must resolve to none")
	}
}

func TestOwnerCapabilitiesAllTrue(t *testing.T) {
	r := permission.NewResolver(nil)
	caps := r.Capabilities(testFeed(), "usr_owner")
	for _, action := range permission.Actions {
		if !caps.Allows(action) {
			t.Fatalf("owner should be allowed %s", action)
		}
	}
}

func TestCustomTable(t *testing.T) {
	table := config.DefaultPermissions()
	viewer := table[config.RoleViewer]
	viewer.CanUpload = true
	table[config.RoleViewer] = viewer
	delete(table, config.RoleContributor)

	r := permission.NewResolver(table)
	feed := testFeed()
	if !r.Can(permission.ActionUpload, feed, "usr_viewer") {
		t.Fatal("expected custom table to grant viewer upload")
	}
	if r.Can(permission.ActionUpload, feed, "usr_contributor") {
		t.Fatal("role missing from table must be denied")
	}
}

func TestLevels(t *testing.T) {
	r := permission.NewResolver(nil)
	if r.Level(permission.RoleOwner) != 100 || r.Level(permission.RoleViewer) != 10 {
		t.Fatalf("unexpected levels owner=%d viewer=%d", r.Level(permission.RoleOwner), r.Level(permission.RoleViewer))
	}
	if !r.IsHigher(permission.RoleEditor, permission.RoleContributor) {
		t.Fatal("editor should outrank contributor")
	}
	if r.IsHigher(permission.RoleViewer, permission.RoleViewer) {
		t.Fatal("a role must not outrank itself")
	}
	if r.IsHigher(permission.RoleNone, permission.RoleViewer) {
		t.Fatal("none must not outrank viewer")
	}
}

func TestValidCollaboratorRole(t *testing.T) {
	for _, role := range []permission.Role{permission.RoleEditor, permission.RoleContributor, permission.RoleViewer} {
		if !permission.ValidCollaboratorRole(role) {
			t.Fatalf("%s should be a valid collaborator role", role)
		}
	}
	for _, role := range []permission.Role{permission.RoleOwner, permission.RoleNone, "admin"} {
		if permission.ValidCollaboratorRole(role) {
			t.Fatalf("%q must not be a valid collaborator role", role)
		}
	}
	if permission.ParseRole(" Editor ") != permission.RoleEditor {
		t.Fatal("ParseRole should normalize case and whitespace")
	}
}
