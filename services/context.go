package services

import "github.com/google/uuid"

// Tenant roles forwarded by the Gateway.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

// SystemActor is the identity recorded when the engine itself performs an
// action, e.g. auto-confirming an expired pending result.
var SystemActor = uuid.Nil

// Caller is the authenticated identity behind a request, as asserted by the
// Gateway token. Every service operation takes one.
type Caller struct {
	ProfileID    uuid.UUID
	TenantID     uuid.UUID
	TenantUserID uuid.UUID
	Role         string
	RequestID    string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin || c.Role == RoleOwner
}
