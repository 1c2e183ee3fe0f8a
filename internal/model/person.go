package model

import "time"

// Case status values. The only transition the API performs is
// missing → found; there is no route that reverts a found case.
const (
	StatusMissing = "missing"
	StatusFound   = "found"
)

// Person represents a missing-person case record.
//
// ImageURL is a relative reference like "/uploads/cv37rs3pp9olc6atsptg.jpg",
// or nil when the report carried no image. The file behind it is owned by
// this record: deleting or replacing the record's image also removes the old
// file, so no orphans accumulate under the upload directory.
//
// DOB and Description are optional free-form fields; the empty string means
// "not provided" and is stored as NULL.
type Person struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	DOB               string    `json:"dob,omitempty"`
	Category          string    `json:"category"`
	LastKnownLocation string    `json:"last_known_location"`
	ContactInfo       string    `json:"contact_info"`
	Description       string    `json:"description,omitempty"`
	ImageURL          *string   `json:"image_url"`
	Status            string    `json:"status"`
	ReportedAt        time.Time `json:"reported_at"`
}
