package story

// Role tags an authenticated user with their access level.
type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleAdmin      Role = "admin"
	RoleConsultant Role = "consultant"
	RoleClient     Role = "client"
	RoleGuest      Role = "guest"
)

// Permissions gated by role.
const (
	PermissionManageUsers   = "users:manage"
	PermissionBrowseUsers   = "users:browse"
	PermissionSaveResponses = "story:save"
	PermissionPublishStory  = "story:publish"
)

var rolePermissions = map[Role][]string{
	RoleSuperAdmin: {
		PermissionManageUsers,
		PermissionBrowseUsers,
		PermissionSaveResponses,
		PermissionPublishStory,
	},
	RoleAdmin: {
		PermissionManageUsers,
		PermissionBrowseUsers,
		PermissionSaveResponses,
		PermissionPublishStory,
	},
	RoleConsultant: {
		PermissionBrowseUsers,
		PermissionSaveResponses,
		PermissionPublishStory,
	},
	RoleClient: {
		PermissionSaveResponses,
		PermissionPublishStory,
	},
	// Guests may walk the wizard in preview mode but nothing they submit
	// is persisted.
	RoleGuest: {},
}

var roleLabels = map[Role]string{
	RoleSuperAdmin: "Super Admin",
	RoleAdmin:      "Admin",
	RoleConsultant: "Consultant",
	RoleClient:     "Client",
	RoleGuest:      "Guest",
}

func (r Role) Label() string {
	return roleLabels[r]
}

// Valid reports whether the value is a known role.
func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// HasPermission reports whether the role grants the permission.
func (r Role) HasPermission(permission string) bool {
	for _, p := range rolePermissions[r] {
		if p == permission {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role may use the admin back-office.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleConsultant, RoleClient, RoleGuest}
}
