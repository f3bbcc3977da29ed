package types

import (
	"errors"
	"fmt"
)

// Role identifies which kind of user an Actor is
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleServiceman Role = "serviceman"
	RoleAdmin      Role = "admin"
)

var ErrInvalidActor = errors.New("invalid actor")

// Actor is the authenticated caller of an engine operation.
// Build one with Customer, Serviceman or Admin; the zero value is not a valid actor.
type Actor struct {
	role Role
	id   uint
}

func Customer(id uint) Actor   { return Actor{role: RoleCustomer, id: id} }
func Serviceman(id uint) Actor { return Actor{role: RoleServiceman, id: id} }
func Admin(id uint) Actor      { return Actor{role: RoleAdmin, id: id} }

// NewActor validates a role tag and id coming from a verified token
func NewActor(role Role, id uint) (Actor, error) {
	if id == 0 {
		return Actor{}, fmt.Errorf("%w: missing user id", ErrInvalidActor)
	}
	switch role {
	case RoleCustomer, RoleServiceman, RoleAdmin:
		return Actor{role: role, id: id}, nil
	default:
		return Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidActor, role)
	}
}

func (a Actor) Role() Role { return a.role }
func (a Actor) ID() uint   { return a.id }

func (a Actor) IsCustomer() bool   { return a.role == RoleCustomer && a.id != 0 }
func (a Actor) IsServiceman() bool { return a.role == RoleServiceman && a.id != 0 }
func (a Actor) IsAdmin() bool      { return a.role == RoleAdmin && a.id != 0 }

func (a Actor) String() string {
	if a.role == "" {
		return "anonymous"
	}
	return fmt.Sprintf("%s:%d", a.role, a.id)
}
