package user

import "strings"

type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleCashier Role = "Cashier"
	RoleKitchen Role = "Kitchen"
	RoleWaiter  Role = "Waiter"
)

// DefaultRole is assigned when a create request omits the role.
const DefaultRole = RoleWaiter

var allRoles = []Role{RoleAdmin, RoleCashier, RoleKitchen, RoleWaiter}

func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleCashier, RoleKitchen, RoleWaiter:
		return true
	default:
		return false
	}
}

// ParseRole matches a role name case-insensitively, so spreadsheet rows with
// "kitchen" or "KITCHEN" still resolve.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range allRoles {
		if strings.EqualFold(string(r), s) {
			return r, true
		}
	}
	return "", false
}

// RoleSet is an allow-list of roles for a route.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Allows(r Role) bool {
	_, ok := s[r]
	return ok
}

var (
	AdminOnly    = NewRoleSet(RoleAdmin)
	AdminCashier = NewRoleSet(RoleAdmin, RoleCashier)
	AdminKitchen = NewRoleSet(RoleAdmin, RoleKitchen)
	AdminWaiter  = NewRoleSet(RoleAdmin, RoleWaiter)
)
