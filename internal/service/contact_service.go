package service

import (
	"context"
	"errors"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/repository"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

const (
	MsgContactNotFound  = "Contact not found"
	MsgContactsNotFound = "Contacts not found"
	MsgContactDuplicate = "Contact with this email or phone number already exists"

	defaultContactLimit = 10
	maxContactLimit     = 100
	birthdayWindowDays  = 7
)

// ContactInput is the writable part of a contact.
type ContactInput struct {
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	BirthDate      *time.Time
	AdditionalInfo *string
}

// ContactService manages the caller's address book.
type ContactService struct {
	contacts repository.ContactRepository
	now      func() time.Time
}

// NewContactService constructs the service.
func NewContactService(contacts repository.ContactRepository) *ContactService {
	return &ContactService{contacts: contacts, now: time.Now}
}

// List pages through the caller's contacts. limit is clamped to 1..100.
func (s *ContactService) List(ctx context.Context, userID string, skip, limit int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = defaultContactLimit
	}
	if limit > maxContactLimit {
		limit = maxContactLimit
	}
	if skip < 0 {
		skip = 0
	}
	return s.contacts.List(ctx, userID, limit, skip)
}

func (s *ContactService) Get(ctx context.Context, userID, id string) (*domain.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFoundAs(err, MsgContactNotFound)
	}
	return contact, nil
}

func (s *ContactService) Create(ctx context.Context, userID string, in ContactInput) (*domain.Contact, error) {
	in, err := validateContact(in)
	if err != nil {
		return nil, err
	}
	contact := &domain.Contact{UserID: userID}
	applyContactInput(contact, in)
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, duplicateAs(err)
	}
	return contact, nil
}

// Update replaces every writable field of an existing contact.
func (s *ContactService) Update(ctx context.Context, userID, id string, in ContactInput) (*domain.Contact, error) {
	in, err := validateContact(in)
	if err != nil {
		return nil, err
	}
	contact, err := s.contacts.GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFoundAs(err, MsgContactNotFound)
	}
	applyContactInput(contact, in)
	if err := s.contacts.Update(ctx, contact); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(MsgContactNotFound)
		}
		return nil, duplicateAs(err)
	}
	return contact, nil
}

// Delete removes the contact and returns it as it was.
func (s *ContactService) Delete(ctx context.Context, userID, id string) (*domain.Contact, error) {
	contact, err := s.contacts.Delete(ctx, userID, id)
	if err != nil {
		return nil, notFoundAs(err, MsgContactNotFound)
	}
	return contact, nil
}

// UpcomingBirthdays returns contacts whose next birthday is within the next
// seven days, today included, soonest first.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, userID string) ([]domain.Contact, error) {
	candidates, err := s.contacts.ListWithBirthDate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	limit := today.AddDate(0, 0, birthdayWindowDays)

	type upcoming struct {
		contact domain.Contact
		next    time.Time
	}
	var matches []upcoming
	for _, c := range candidates {
		next, ok := c.NextBirthday(today)
		if ok && !next.After(limit) {
			matches = append(matches, upcoming{contact: c, next: next})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].next.Before(matches[j].next) })

	result := make([]domain.Contact, 0, len(matches))
	for _, m := range matches {
		result = append(result, m.contact)
	}
	return result, nil
}

// Search matches any of the given terms as case-insensitive substrings.
func (s *ContactService) Search(ctx context.Context, userID string, filter repository.ContactFilter) ([]domain.Contact, error) {
	if blank(filter.FirstName) && blank(filter.LastName) && blank(filter.Email) {
		return nil, apperrors.NewBadRequest("at least one of first_name, last_name, email is required")
	}
	contacts, err := s.contacts.Search(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, apperrors.NewNotFound(MsgContactsNotFound)
	}
	return contacts, nil
}

func validateContact(in ContactInput) (ContactInput, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	details := map[string]any{}
	checkLen := func(field, value string, max int) {
		switch n := utf8.RuneCountInString(value); {
		case n == 0:
			details[field] = "required"
		case n > max:
			details[field] = "too long"
		}
	}
	checkLen("first_name", in.FirstName, 50)
	checkLen("last_name", in.LastName, 50)
	checkLen("phone_number", in.PhoneNumber, 20)
	checkLen("email", in.Email, 100)
	if _, ok := details["email"]; !ok {
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			details["email"] = "invalid email"
		}
	}
	if in.AdditionalInfo != nil && utf8.RuneCountInString(*in.AdditionalInfo) > 255 {
		details["additional_info"] = "too long"
	}
	if len(details) > 0 {
		return in, apperrors.NewValidationError("invalid contact", details)
	}
	return in, nil
}

func applyContactInput(c *domain.Contact, in ContactInput) {
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Email = in.Email
	c.PhoneNumber = in.PhoneNumber
	c.BirthDate = in.BirthDate
	c.AdditionalInfo = in.AdditionalInfo
}

func notFoundAs(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(message)
	}
	return err
}

func duplicateAs(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict(MsgContactDuplicate, nil)
	}
	return err
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
