package model

// Role is a user's role tag. Roles are enumerations with exhaustive
// switches in the access policy; there is no inheritance.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// User is the identity consumed by the core. User lifecycle is owned by
// an external collaborator; only role and staff matter to the policy.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	IsStaff  bool   `json:"is_staff"`
}

// IsPrivilegedRole reports whether the user's identity alone grants
// privilege across the policy, independent of any contest.
func (u *User) IsPrivilegedRole() bool {
	if u == nil {
		return false
	}
	return u.IsStaff || u.Role == RoleAdmin || u.Role == RoleTeacher
}
