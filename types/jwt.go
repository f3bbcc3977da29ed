package types

import "github.com/golang-jwt/jwt/v5"

// Claims represents the JWT claims issued by the identity provider.
// Role is the verified actor tag; it is never re-derived from other fields.
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the actor described by the claims.
func (c *Claims) Actor() (Actor, error) {
	return NewActor(c.Role, c.UserID)
}
