package http

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/events"
	"github.com/spec-kit/contacts-service/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*domain.User{}}
}

func (r *memUsers) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *memUsers) update(id string, mutate func(*domain.User)) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	mutate(u)
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (r *memUsers) MarkConfirmed(_ context.Context, id string) error {
	_, err := r.update(id, func(u *domain.User) { u.Confirmed = true })
	return err
}

func (r *memUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := r.update(id, func(u *domain.User) { u.PasswordHash = passwordHash })
	return err
}

func (r *memUsers) UpdateAvatar(_ context.Context, id, avatarURL string) (*domain.User, error) {
	return r.update(id, func(u *domain.User) { u.AvatarURL = avatarURL })
}

type memContacts struct {
	mu       sync.Mutex
	contacts []domain.Contact
}

func (r *memContacts) Create(_ context.Context, contact *domain.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(contact) {
		return repository.ErrDuplicate
	}
	contact.ID = uuid.NewString()
	contact.CreatedAt = time.Now().UTC()
	contact.UpdatedAt = contact.CreatedAt
	r.contacts = append(r.contacts, *contact)
	return nil
}

func (r *memContacts) conflicts(contact *domain.Contact) bool {
	for _, c := range r.contacts {
		if c.UserID == contact.UserID && c.ID != contact.ID &&
			(c.Email == contact.Email || c.PhoneNumber == contact.PhoneNumber) {
			return true
		}
	}
	return false
}

func (r *memContacts) Update(_ context.Context, contact *domain.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(contact) {
		return repository.ErrDuplicate
	}
	for i, c := range r.contacts {
		if c.ID == contact.ID && c.UserID == contact.UserID {
			contact.UpdatedAt = time.Now().UTC()
			r.contacts[i] = *contact
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memContacts) Delete(_ context.Context, userID, id string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.contacts {
		if c.ID == id && c.UserID == userID {
			r.contacts = append(r.contacts[:i], r.contacts[i+1:]...)
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memContacts) GetByID(_ context.Context, userID, id string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ID == id && c.UserID == userID {
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memContacts) owned(userID string, keep func(domain.Contact) bool) []domain.Contact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Contact{}
	for _, c := range r.contacts {
		if c.UserID == userID && keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (r *memContacts) List(_ context.Context, userID string, limit, offset int) ([]domain.Contact, error) {
	all := r.owned(userID, func(domain.Contact) bool { return true })
	if offset >= len(all) {
		return []domain.Contact{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memContacts) ListWithBirthDate(_ context.Context, userID string) ([]domain.Contact, error) {
	return r.owned(userID, func(c domain.Contact) bool { return c.BirthDate != nil }), nil
}

func (r *memContacts) Search(_ context.Context, userID string, filter repository.ContactFilter) ([]domain.Contact, error) {
	contains := func(value string, term *string) bool {
		return term != nil && *term != "" && strings.Contains(strings.ToLower(value), strings.ToLower(*term))
	}
	out := r.owned(userID, func(c domain.Contact) bool {
		return contains(c.FirstName, filter.FirstName) || contains(c.LastName, filter.LastName) || contains(c.Email, filter.Email)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) last(eventType events.EventType) (events.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.events) - 1; i >= 0; i-- {
		if d.events[i].Type == eventType {
			return d.events[i], true
		}
	}
	return events.Event{}, false
}

type stubUploader struct {
	mu    sync.Mutex
	bytes map[string]int
}

func (u *stubUploader) UploadAvatar(_ context.Context, username string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.bytes == nil {
		u.bytes = map[string]int{}
	}
	u.bytes[username] = len(data)
	return "https://cdn.test/avatars/" + username, nil
}
