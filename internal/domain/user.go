package domain

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleStaff  UserRole = "staff"
	RoleSystem UserRole = "system"
)

// Actor is the authenticated caller of an operation. It is passed explicitly
// from the HTTP layer into services.
type Actor struct {
	UserID int64    `json:"user_id"`
	Role   UserRole `json:"role"`
}

// SystemActor performs automatic transitions such as completion sweeps.
var SystemActor = Actor{Role: RoleSystem}
