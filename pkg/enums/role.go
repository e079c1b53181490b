package enums

import "fmt"

// Role is the account role attached to an API key.
//
// A moteur (search engine) emits hails on behalf of customers; an
// operateur (operator) registers taxis and relays rides to drivers. An
// account may hold both roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleMoteur    Role = "moteur"
	RoleOperateur Role = "operateur"
)

var validRoles = []Role{
	RoleAdmin,
	RoleMoteur,
	RoleOperateur,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
