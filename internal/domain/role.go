package domain

// Role names carried in the JWT role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
