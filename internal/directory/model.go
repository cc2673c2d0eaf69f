package directory

import (
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Specialty string
	Bio       *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Contact   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Counts backs the admin dashboard.
type Counts struct {
	Doctors  int64 `json:"doctors"`
	Patients int64 `json:"patients"`
}
