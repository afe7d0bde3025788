package domain

// UserRole represents the access level of an authenticated user
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// Identity is the resolved profile of the authenticated user.
// It is always derived from the stored credential via the backend's
// /auth/me endpoint, never persisted on its own.
type Identity struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

// IsAdmin reports whether the identity may manage the knowledge base
func (i Identity) IsAdmin() bool {
	return i.Role == UserRoleAdmin
}

// Credentials represents login/registration input
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
