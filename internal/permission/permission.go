// Package permission resolves a user's role on a feed and answers capability
// checks against the configured role table.
package permission

import (
	"strings"

	"lauschr/internal/config"
)

// Role names a position in the permission table.
type Role string

const (
	RoleNone        Role = ""
	RoleOwner       Role = config.RoleOwner
	RoleEditor      Role = config.RoleEditor
	RoleContributor Role = config.RoleContributor
	RoleViewer      Role = config.RoleViewer
)

// String returns the role name, or "none" for RoleNone.
func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// ParseRole normalizes user input into a Role. Unknown names yield RoleNone.
func ParseRole(value string) Role {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleOwner, RoleEditor, RoleContributor, RoleViewer:
		return role
	default:
		return RoleNone
	}
}

// ValidCollaboratorRole reports whether role may be stored in a collaborator
// map. Owner is implied by the feed's owner and never stored.
func ValidCollaboratorRole(role Role) bool {
	switch role {
	case RoleEditor, RoleContributor, RoleViewer:
		return true
	default:
		return false
	}
}

// Action is one capability key of the permission table.
type Action string

const (
	ActionUpload         Action = "can_upload"
	ActionEdit           Action = "can_edit"
	ActionDelete         Action = "can_delete"
	ActionInvite         Action = "can_invite"
	ActionManageSettings Action = "can_manage_settings"
	ActionDeleteFeed     Action = "can_delete_feed"
)

// Actions lists every capability in display order.
var Actions = []Action{ActionUpload, ActionEdit, ActionDelete, ActionInvite, ActionManageSettings, ActionDeleteFeed}

// Membership exposes the ownership data a role decision needs.
type Membership interface {
	Owner() string
	CollaboratorRole(userID string) (string, bool)
}

// Capabilities is the read model used to gate UI actions.
type Capabilities struct {
	Role              Role `json:"role"`
	CanUpload         bool `json:"can_upload"`
	CanEdit           bool `json:"can_edit"`
	CanDelete         bool `json:"can_delete"`
	CanInvite         bool `json:"can_invite"`
	CanManageSettings bool `json:"can_manage_settings"`
	CanDeleteFeed     bool `json:"can_delete_feed"`
}

// Allows reports the value of a single action.
func (c Capabilities) Allows(action Action) bool {
	switch action {
	case ActionUpload:
		return c.CanUpload
	case ActionEdit:
		return c.CanEdit
	case ActionDelete:
		return c.CanDelete
	case ActionInvite:
		return c.CanInvite
	case ActionManageSettings:
		return c.CanManageSettings
	case ActionDeleteFeed:
		return c.CanDeleteFeed
	default:
		return false
	}
}

// Resolver answers role and capability questions from a static table.
type Resolver struct {
	table map[Role]config.RolePermissions
}

// NewResolver builds a resolver from a role table keyed by role name.
// A nil or empty table falls back to config.DefaultPermissions.
func NewResolver(table map[string]config.RolePermissions) *Resolver {
	if len(table) == 0 {
		table = config.DefaultPermissions()
	}
	r := &Resolver{table: make(map[Role]config.RolePermissions, len(table))}
	for name, perms := range table {
		if role := ParseRole(name); role != RoleNone {
			r.table[role] = perms
		}
	}
	return r
}

// NewResolverFromConfig builds a resolver from cfg.Permissions.
func NewResolverFromConfig(cfg *config.Config) *Resolver {
	if cfg == nil {
		return NewResolver(nil)
	}
	return NewResolver(cfg.Permissions)
}

// Role returns owner when userID owns the feed, the stored collaborator role
// when present, and RoleNone otherwise.
func (r *Resolver) Role(m Membership, userID string) Role {
	if m == nil || strings.TrimSpace(userID) == "" {
		return RoleNone
	}
	if m.Owner() == userID {
		return RoleOwner
	}
	if stored, ok := m.CollaboratorRole(userID); ok {
		role := ParseRole(stored)
		if role == RoleOwner {
			return RoleNone
		}
		return role
	}
	return RoleNone
}

// Can reports whether userID may perform action on the feed. Unknown roles and
// actions are denied.
func (r *Resolver) Can(action Action, m Membership, userID string) bool {
	return r.Capabilities(m, userID).Allows(action)
}

// Capabilities returns the role and every capability flag for userID.
func (r *Resolver) Capabilities(m Membership, userID string) Capabilities {
	role := r.Role(m, userID)
	perms, ok := r.table[role]
	if role == RoleNone || !ok {
		return Capabilities{Role: RoleNone}
	}
	return Capabilities{
		Role:              role,
		CanUpload:         perms.CanUpload,
		CanEdit:           perms.CanEdit,
		CanDelete:         perms.CanDelete,
		CanInvite:         perms.CanInvite,
		CanManageSettings: perms.CanManageSettings,
		CanDeleteFeed:     perms.CanDeleteFeed,
	}
}

// RoleCapabilities returns the table row for role without a feed context.
func (r *Resolver) RoleCapabilities(role Role) Capabilities {
	perms, ok := r.table[role]
	if !ok {
		return Capabilities{Role: RoleNone}
	}
	return Capabilities{
		Role:              role,
		CanUpload:         perms.CanUpload,
		CanEdit:           perms.CanEdit,
		CanDelete:         perms.CanDelete,
		CanInvite:         perms.CanInvite,
		CanManageSettings: perms.CanManageSettings,
		CanDeleteFeed:     perms.CanDeleteFeed,
	}
}

// Level returns the configured level for role, or 0 for unknown roles.
func (r *Resolver) Level(role Role) int {
	return r.table[role].Level
}

// IsHigher reports whether role a ranks strictly above role b.
func (r *Resolver) IsHigher(a, b Role) bool {
	return r.Level(a) > r.Level(b)
}
