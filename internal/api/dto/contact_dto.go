package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/service"
)

// Date is a calendar date that accepts "2006-01-02" or RFC 3339 input and
// renders as "2006-01-02".
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", raw)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

// ContactRequest is the create/update payload.
type ContactRequest struct {
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	PhoneNumber    string  `json:"phone_number"`
	BirthDate      *Date   `json:"birth_date"`
	AdditionalInfo *string `json:"additional_info"`
}

// Input converts the payload for the service layer.
func (r ContactRequest) Input() service.ContactInput {
	in := service.ContactInput{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		PhoneNumber:    r.PhoneNumber,
		AdditionalInfo: r.AdditionalInfo,
	}
	if r.BirthDate != nil && !r.BirthDate.IsZero() {
		t := r.BirthDate.Time
		in.BirthDate = &t
	}
	return in
}

// ContactResponse is the public view of a contact.
type ContactResponse struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phone_number"`
	BirthDate      *Date     `json:"birth_date"`
	AdditionalInfo *string   `json:"additional_info"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewContactResponse(c *domain.Contact) ContactResponse {
	resp := ContactResponse{
		ID:             c.ID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		AdditionalInfo: c.AdditionalInfo,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.BirthDate != nil {
		resp.BirthDate = &Date{Time: *c.BirthDate}
	}
	return resp
}

func NewContactListResponse(contacts []domain.Contact) []ContactResponse {
	out := make([]ContactResponse, 0, len(contacts))
	for i := range contacts {
		out = append(out, NewContactResponse(&contacts[i]))
	}
	return out
}
