// Package identity models the already-authenticated caller passed into
// every core operation. Authentication itself lives outside this
// service; handlers receive (user id, role) and trust it.
package identity

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Actor is a tagged caller identity. ID is the doctor or patient id and
// is zero for admins.
type Actor struct {
	Role Role
	ID   uuid.UUID
}

func Admin() Actor               { return Actor{Role: RoleAdmin} }
func Doctor(id uuid.UUID) Actor  { return Actor{Role: RoleDoctor, ID: id} }
func Patient(id uuid.UUID) Actor { return Actor{Role: RolePatient, ID: id} }

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsDoctor() bool  { return a.Role == RoleDoctor }
func (a Actor) IsPatient() bool { return a.Role == RolePatient }
