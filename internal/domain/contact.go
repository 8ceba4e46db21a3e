package domain

import "time"

// Contact is an address book entry owned by a single user.
type Contact struct {
	ID             string
	UserID         string
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	BirthDate      *time.Time
	AdditionalInfo *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NextBirthday returns the first occurrence of the contact's birthday on or
// after from, truncated to the day. Feb 29 falls on Feb 28 in common years.
func (c *Contact) NextBirthday(from time.Time) (time.Time, bool) {
	if c.BirthDate == nil {
		return time.Time{}, false
	}
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	next := anniversary(*c.BirthDate, day.Year(), day.Location())
	if next.Before(day) {
		next = anniversary(*c.BirthDate, day.Year()+1, day.Location())
	}
	return next, true
}

func anniversary(birth time.Time, year int, loc *time.Location) time.Time {
	month, d := birth.Month(), birth.Day()
	if month == time.February && d == 29 && !isLeap(year) {
		d = 28
	}
	return time.Date(year, month, d, 0, 0, 0, 0, loc)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
