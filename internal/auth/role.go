package auth

import (
	"strings"

	"github.com/otcheredev/roadservice-api/internal/models"
)

var roleLevels = map[models.Role]int{
	models.RoleSuperAdmin:   3,
	models.RoleCompanyAdmin: 2,
	models.RoleWorker:       1,
}

// Level returns the privilege level of role. Unknown roles get the lowest level.
func Level(role models.Role) int {
	if l, ok := roleLevels[role]; ok {
		return l
	}
	return 1
}

// AtLeast reports whether id holds required or a higher role. Every role
// comparison in the service goes through here.
func AtLeast(id models.Identity, required models.Role) bool {
	return Level(id.Role) >= Level(required)
}

// IsSuperAdmin reports whether id has global scope
func IsSuperAdmin(id models.Identity) bool {
	return AtLeast(id, models.RoleSuperAdmin)
}

// CanAssign reports whether actor may grant target to another account.
// Only super admins may grant super_admin.
func CanAssign(actor models.Identity, target models.Role) bool {
	if !target.Valid() {
		return false
	}
	if Level(target) >= Level(models.RoleSuperAdmin) {
		return IsSuperAdmin(actor)
	}
	return AtLeast(actor, models.RoleCompanyAdmin)
}

// ParseRole normalises s into a known role
func ParseRole(s string) (models.Role, bool) {
	r := models.Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}
