package identity

// Roles carried in the auth token. Token issuance happens elsewhere; the
// engine only trusts the already-authenticated claims handed to it.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller of an engine operation. It replaces the
// loose per-request context keys with an explicit value object, so services
// never reach back into the transport layer for identity.
type Actor struct {
	EmployeeID  string
	Name        string
	Role        string
	Designation string
}

// CanDecide reports whether the actor holds decision authority over leave
// requests. Ownership checks (cancel) are separate and per-request.
func (a Actor) CanDecide() bool {
	return a.Role == RoleAdmin || a.Role == RoleManager
}
