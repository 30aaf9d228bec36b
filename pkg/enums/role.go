package enums

import "slices"

// Role is the acting user's platform role carried in the access token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleVendor   Role = "vendor"
	RolePicker   Role = "picker"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{
	RoleCustomer,
	RoleStaff,
	RoleVendor,
	RolePicker,
	RoleAdmin,
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	return slices.Contains(validRoles, r)
}

// CanShopForAnyHousehold reports whether the role may act on behalf of a
// household it is not a member of.
func (r Role) CanShopForAnyHousehold() bool {
	switch r {
	case RoleStaff, RoleVendor, RolePicker, RoleAdmin:
		return true
	default:
		return false
	}
}

func ParseRole(value string) (Role, error) {
	return member(validRoles, "role", value, value)
}
