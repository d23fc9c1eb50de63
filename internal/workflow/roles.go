package workflow

import "fmt"

// Role is one of the fixed reviewer roles. The set is closed: config and
// request input are parsed with ParseRole.
type Role string

const (
	RoleKYCAnalyst  Role = "KYC_ANALYST"
	RoleKYCReviewer Role = "KYC_REVIEWER"
	RoleAFCReviewer Role = "AFC_REVIEWER"
	RoleACOReviewer Role = "ACO_REVIEWER"
	RoleCaseManager Role = "CASE_MANAGER"
	RoleAdmin       Role = "ADMIN"
)

// Roles lists every known role.
var Roles = []Role{
	RoleKYCAnalyst,
	RoleKYCReviewer,
	RoleAFCReviewer,
	RoleACOReviewer,
	RoleCaseManager,
	RoleAdmin,
}

// ParseRole returns the Role named by s.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Capability is a permission granted by role, independent of stage bindings.
type Capability int

const (
	// CapAdminOverride lets the actor transition and assign any case.
	CapAdminOverride Capability = iota
	// CapCreateCase lets the actor open new cases.
	CapCreateCase
	// CapViewAllUnassigned puts every pooled case in the actor's inbox,
	// whatever its stage.
	CapViewAllUnassigned
)

func (c Capability) String() string {
	switch c {
	case CapAdminOverride:
		return "admin_override"
	case CapCreateCase:
		return "create_case"
	case CapViewAllUnassigned:
		return "view_all_unassigned"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

var capabilities = map[Role][]Capability{
	RoleKYCAnalyst:  {CapCreateCase},
	RoleCaseManager: {CapCreateCase},
	RoleAdmin:       {CapAdminOverride, CapCreateCase, CapViewAllUnassigned},
}

// Actor is an authenticated user with its capabilities resolved once.
type Actor struct {
	ID   string
	Role Role
	caps map[Capability]bool
}

// NewActor builds an Actor from a user name and role.
func NewActor(id string, role Role) Actor {
	caps := make(map[Capability]bool)
	for _, c := range capabilities[role] {
		caps[c] = true
	}
	return Actor{ID: id, Role: role, caps: caps}
}

// Can reports whether the actor holds capability c.
func (a Actor) Can(c Capability) bool {
	return a.caps[c]
}

func (a Actor) String() string {
	return fmt.Sprintf("%s (%s)", a.ID, a.Role)
}

// User is a directory entry.
type User struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role"`
}
