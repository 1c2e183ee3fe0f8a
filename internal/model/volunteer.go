package model

import "time"

// Volunteer represents a volunteer sign-up. Records are write-once: the API
// creates them and lists them for admins, nothing updates or deletes them.
type Volunteer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Skills       string    `json:"skills"`
	Availability string    `json:"availability"`
	Message      string    `json:"message,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}
