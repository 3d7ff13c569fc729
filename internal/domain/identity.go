package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller as handed over by the auth collaborator.
// The zero value is an anonymous caller.
type Identity struct {
	UserID     string `json:"user_id"`
	IsVerified bool   `json:"is_verified"`
	Role       Role   `json:"role,omitempty"`
}

func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

func (i Identity) IsAdmin() bool {
	return !i.Anonymous() && i.Role == RoleAdmin
}
