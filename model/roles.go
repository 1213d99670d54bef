package model

import "fmt"

// Role is a member's level of access to an investigation.
type Role string

const (
	RoleOwner  Role = "O"
	RoleAdmin  Role = "A"
	RoleEditor Role = "E"
	RoleViewer Role = "V"
)

// Roles lists every role from most to least privileged.
var Roles = []Role{RoleOwner, RoleAdmin, RoleEditor, RoleViewer}

// Rank orders roles; a higher rank includes every permission of the lower ones.
// Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "Owner"
	case RoleAdmin:
		return "Admin"
	case RoleEditor:
		return "Editor"
	case RoleViewer:
		return "Viewer"
	}
	return string(r)
}

// ParseRole accepts either the stored letter or the lower-case name.
func ParseRole(s string) (Role, error) {
	switch s {
	case "O", "owner":
		return RoleOwner, nil
	case "A", "admin":
		return RoleAdmin, nil
	case "E", "editor":
		return RoleEditor, nil
	case "V", "viewer":
		return RoleViewer, nil
	}
	return "", &ValidationError{Reason: "invalid_role", Message: fmt.Sprintf("unknown role %q", s)}
}

// RoleGroup holds the members sharing one role on one investigation.
type RoleGroup struct {
	ID              int64  `json:"id"`
	InvestigationID int64  `json:"investigation_id"`
	Role            Role   `json:"role"`
	Name            string `json:"name"`
}

// GroupName is the display name of the group for role on the named investigation.
func GroupName(investigationName string, role Role) string {
	return fmt.Sprintf("%s - %ss", investigationName, role)
}

// Member is a user together with their role on an investigation.
type Member struct {
	User
	Role Role `json:"role"`
}
