package model

// UserRole is the role enum exactly as the server stores it.
type UserRole string

const (
	UserRoleUser      UserRole = "USER"
	UserRoleLibrarian UserRole = "LIBRARIAN"
	UserRoleAdmin     UserRole = "ADMIN"
)

// Role is the client-side role resolved from the bearer token claims.
// RoleUnknown means the token was absent or its payload could not be
// decoded; callers treat that as "no privileges", never as an error.
type Role string

const (
	RoleUnknown   Role = ""
	RoleUser      Role = "user"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// User is a library member or staff account.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// IsStaff reports whether the user can administer the catalog.
func (u User) IsStaff() bool {
	return u.Role == UserRoleLibrarian || u.Role == UserRoleAdmin
}
