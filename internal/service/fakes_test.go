package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/events"
	"github.com/spec-kit/contacts-service/internal/mail"
	"github.com/spec-kit/contacts-service/internal/repository"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	seq     int
	failDup bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDup {
		return repository.ErrDuplicate
	}
	for _, u := range r.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	r.seq++
	user.ID = fmt.Sprintf("u-%d", r.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.byID[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) update(id string, fn func(*domain.User)) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	fn(u)
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) MarkConfirmed(_ context.Context, id string) error {
	_, err := r.update(id, func(u *domain.User) { u.Confirmed = true })
	return err
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	_, err := r.update(id, func(u *domain.User) { u.PasswordHash = hash })
	return err
}

func (r *fakeUserRepo) UpdateAvatar(_ context.Context, id, url string) (*domain.User, error) {
	return r.update(id, func(u *domain.User) { u.AvatarURL = url })
}

type fakeDispatcher struct {
	mu       sync.Mutex
	events   []events.Event
	handlers map[events.EventType][]events.EventHandler
	err      error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{handlers: map[events.EventType][]events.EventHandler{}}
}

func (d *fakeDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, e)
	return nil
}

func (d *fakeDispatcher) Subscribe(t events.EventType, h events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

func (d *fakeDispatcher) published(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// deliver runs the subscribed handlers synchronously for every published event.
func (d *fakeDispatcher) deliver(ctx context.Context) error {
	d.mu.Lock()
	pending := d.events
	d.events = nil
	d.mu.Unlock()
	for _, e := range pending {
		for _, h := range d.handlers[e.Type] {
			if err := h(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}

type fakeIdentityCache struct {
	mu          sync.Mutex
	entries     map[string]domain.User
	invalidated []string
}

func newFakeIdentityCache() *fakeIdentityCache {
	return &fakeIdentityCache{entries: map[string]domain.User{}}
}

func (c *fakeIdentityCache) Get(_ context.Context, username string) (*domain.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.entries[username]
	if !ok {
		return nil, false, nil
	}
	return &u, true, nil
}

func (c *fakeIdentityCache) Put(_ context.Context, user *domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[user.Username] = *user
	return nil
}

func (c *fakeIdentityCache) Invalidate(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, username)
	c.invalidated = append(c.invalidated, username)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeUploader struct {
	username    string
	contentType string
	body        string
	err         error
}

func (u *fakeUploader) UploadAvatar(_ context.Context, username string, body io.Reader, _ int64, contentType string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	data, _ := io.ReadAll(body)
	u.username, u.contentType, u.body = username, contentType, string(data)
	return "https://cdn.example.com/RestApp/" + username, nil
}

type fakeContactRepo struct {
	mu          sync.Mutex
	contacts    map[string]*domain.Contact
	seq         int
	lastLimit   int
	lastOffset  int
	lastFilter  repository.ContactFilter
	searchCalls int
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: map[string]*domain.Contact{}}
}

func (r *fakeContactRepo) conflicts(c *domain.Contact) bool {
	for _, other := range r.contacts {
		if other.ID != c.ID && other.UserID == c.UserID && (other.Email == c.Email || other.PhoneNumber == c.PhoneNumber) {
			return true
		}
	}
	return false
}

func (r *fakeContactRepo) Create(_ context.Context, c *domain.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(c) {
		return repository.ErrDuplicate
	}
	r.seq++
	c.ID = fmt.Sprintf("c-%d", r.seq)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *fakeContactRepo) Update(_ context.Context, c *domain.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.contacts[c.ID]
	if !ok || existing.UserID != c.UserID {
		return pgx.ErrNoRows
	}
	if r.conflicts(c) {
		return repository.ErrDuplicate
	}
	c.UpdatedAt = time.Now()
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *fakeContactRepo) Delete(_ context.Context, userID, id string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok || c.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	delete(r.contacts, id)
	return c, nil
}

func (r *fakeContactRepo) GetByID(_ context.Context, userID, id string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok || c.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContactRepo) owned(userID string, keep func(*domain.Contact) bool) []domain.Contact {
	out := []domain.Contact{}
	for _, c := range r.contacts {
		if c.UserID == userID && keep(c) {
			out = append(out, *c)
		}
	}
	return out
}

func (r *fakeContactRepo) List(_ context.Context, userID string, limit, offset int) ([]domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit, r.lastOffset = limit, offset
	return r.owned(userID, func(*domain.Contact) bool { return true }), nil
}

func (r *fakeContactRepo) ListWithBirthDate(_ context.Context, userID string) ([]domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owned(userID, func(c *domain.Contact) bool { return c.BirthDate != nil }), nil
}

func (r *fakeContactRepo) Search(_ context.Context, userID string, f repository.ContactFilter) ([]domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchCalls++
	r.lastFilter = f
	has := func(value string, term *string) bool {
		return term != nil && *term != "" && strings.Contains(strings.ToLower(value), strings.ToLower(*term))
	}
	return r.owned(userID, func(c *domain.Contact) bool {
		return has(c.FirstName, f.FirstName) || has(c.LastName, f.LastName) || has(c.Email, f.Email)
	}), nil
}

func newTestTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(auth.TokenConfig{Secret: "service-test-secret", Algorithm: "HS256"})
	require.NoError(t, err)
	return tm
}

func strPtr(s string) *string { return &s }
