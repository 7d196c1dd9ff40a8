package entity

import (
	"time"
)

type RegistrationStatus string

const (
	RegistrationStatusConfirmed  RegistrationStatus = "confirmed"
	RegistrationStatusWaitlisted RegistrationStatus = "waitlisted"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

// Contact is carried along with a registration and never interpreted.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Registration struct {
	ID         string             `json:"id" db:"id"`
	ResourceID string             `json:"resourceId" db:"resource_id"`
	PartySize  int                `json:"partySize" db:"party_size"`
	Contact    Contact            `json:"contact" db:"contact"`
	Status     RegistrationStatus `json:"status" db:"status"`
	CreatedAt  time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time          `json:"updatedAt" db:"updated_at"`
}

func (r *Registration) IsConfirmed() bool {
	return r.Status == RegistrationStatusConfirmed
}

func (r *Registration) IsWaitlisted() bool {
	return r.Status == RegistrationStatusWaitlisted
}

// ConfirmedSeats sums party sizes of confirmed registrations.
func ConfirmedSeats(registrations []*Registration) int {
	total := 0
	for _, r := range registrations {
		if r.IsConfirmed() {
			total += r.PartySize
		}
	}
	return total
}
