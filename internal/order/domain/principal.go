package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

// Principal is the trusted identity attached to every request. It is
// produced by the authentication collaborator; the core never inspects
// credentials itself.
type Principal struct {
	ID   UserID
	Role Role
}

func (p Principal) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Principal) IsDelivery() bool { return p.Role == RoleDelivery }
