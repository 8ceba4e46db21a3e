package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/config"
	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/events"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

type authFixture struct {
	svc        *AuthService
	users      *fakeUserRepo
	dispatcher *fakeDispatcher
	cache      *fakeIdentityCache
	tokens     *auth.TokenManager
}

func newAuthFixture(t *testing.T, mutate ...func(*config.Config)) *authFixture {
	t.Helper()
	var cfg config.Config
	for _, m := range mutate {
		m(&cfg)
	}
	f := &authFixture{
		users:      newFakeUserRepo(),
		dispatcher: newFakeDispatcher(),
		cache:      newFakeIdentityCache(),
		tokens:     newTestTokens(t),
	}
	f.svc = NewAuthService(cfg, AuthDependencies{
		UserRepo:   f.users,
		Hasher:     auth.NewHasher(4, 2),
		Tokens:     f.tokens,
		Cache:      f.cache,
		Dispatcher: f.dispatcher,
		Logger:     zap.NewNop(),
	})
	return f
}

func (f *authFixture) register(t *testing.T, username, email, password string) *domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username, Email: email, Password: password, BaseURL: "http://api.local/",
	})
	require.NoError(t, err)
	return user
}

func (f *authFixture) confirm(t *testing.T, email string) {
	t.Helper()
	token, _, err := f.tokens.IssueEmailToken(email)
	require.NoError(t, err)
	_, err = f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)
}

func requireDomainError(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, status, de.HTTPStatus)
	if message != "" {
		assert.Equal(t, message, de.Message)
	}
}

func TestRegisterCreatesUnconfirmedUser(t *testing.T) {
	f := newAuthFixture(t)

	user := f.register(t, "alice", "alice@x.com", "pw12345678")
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.Confirmed)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEqual(t, "pw12345678", user.PasswordHash)
	assert.Equal(t, GravatarURL("alice@x.com"), user.AvatarURL)

	published := f.dispatcher.published(events.EventConfirmationEmailRequested)
	require.Len(t, published, 1)
	payload := published[0].Payload.(events.ConfirmationEmailPayload)
	assert.Equal(t, "alice@x.com", payload.Email)
	assert.Equal(t, "alice", payload.Username)
	assert.Equal(t, "http://api.local/", payload.BaseURL)
}

func TestRegisterConflicts(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "alice@x.com", "pw12345678")

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "bob", Email: "alice@x.com", Password: "pw"})
	requireDomainError(t, err, http.StatusConflict, MsgEmailTaken)

	_, err = f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "other@x.com", Password: "pw"})
	requireDomainError(t, err, http.StatusConflict, MsgUsernameTaken)

	// email is checked first
	_, err = f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "pw"})
	requireDomainError(t, err, http.StatusConflict, MsgEmailTaken)

	assert.Len(t, f.dispatcher.published(events.EventConfirmationEmailRequested), 1)
}

func TestRegisterLateUniqueViolationIsConflict(t *testing.T) {
	f := newAuthFixture(t)
	f.users.failDup = true

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "pw"})
	requireDomainError(t, err, http.StatusConflict, "")
	assert.Empty(t, f.dispatcher.published(events.EventConfirmationEmailRequested))
}

func TestRegisterRolePolicy(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "root", Email: "root@x.com", Password: "pw", Role: "admin"})
	requireDomainError(t, err, http.StatusForbidden, MsgAdminRoleNotAllowed)

	_, err = f.svc.Register(context.Background(), RegisterInput{Username: "root", Email: "root@x.com", Password: "pw", Role: "owner"})
	requireDomainError(t, err, http.StatusBadRequest, "")

	permissive := newAuthFixture(t, func(c *config.Config) { c.Auth.AllowAdminRegistration = true })
	user, err := permissive.svc.Register(context.Background(), RegisterInput{Username: "root", Email: "root@x.com", Password: "pw", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestRegisterSucceedsWhenQueueIsFull(t *testing.T) {
	f := newAuthFixture(t)
	f.dispatcher.err = events.ErrQueueFull

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@x.com", Password: "pw"})
	assert.NoError(t, err)
}

func TestLoginFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "alice@x.com", "pw12345678")

	_, err := f.svc.Login(context.Background(), "alice", "pw12345678")
	requireDomainError(t, err, http.StatusUnauthorized, MsgEmailNotConfirmed)

	f.confirm(t, "alice@x.com")

	_, err = f.svc.Login(context.Background(), "alice", "wrong")
	requireDomainError(t, err, http.StatusUnauthorized, MsgBadCredentials)

	_, err = f.svc.Login(context.Background(), "nobody", "pw12345678")
	requireDomainError(t, err, http.StatusUnauthorized, MsgBadCredentials)

	token, err := f.svc.Login(context.Background(), "alice", "pw12345678")
	require.NoError(t, err)
	sub, err := f.tokens.SubjectFor(token, domain.TokenPurposeAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestLoginWithMalformedStoredHash(t *testing.T) {
	f := newAuthFixture(t)
	user := f.register(t, "alice", "alice@x.com", "pw")
	require.NoError(t, f.users.UpdatePassword(context.Background(), user.ID, "not-bcrypt"))

	_, err := f.svc.Login(context.Background(), "alice", "pw")
	requireDomainError(t, err, http.StatusUnauthorized, MsgBadCredentials)
}

func TestConfirmEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "alice@x.com", "pw")
	token, _, err := f.tokens.IssueEmailToken("alice@x.com")
	require.NoError(t, err)

	msg, err := f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, MsgEmailConfirmed, msg)
	assert.Equal(t, []string{"alice"}, f.cache.invalidated)

	msg, err = f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, MsgAlreadyConfirmed, msg)

	stored, err := f.users.GetByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.True(t, stored.Confirmed)
}

func TestConfirmEmailFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "alice@x.com", "pw")

	_, err := f.svc.ConfirmEmail(context.Background(), "garbage")
	requireDomainError(t, err, http.StatusBadRequest, MsgInvalidEmailToken)

	access, _, err := f.tokens.IssueAccessToken("alice@x.com", 0)
	require.NoError(t, err)
	_, err = f.svc.ConfirmEmail(context.Background(), access)
	requireDomainError(t, err, http.StatusBadRequest, MsgInvalidEmailToken)

	ghost, _, err := f.tokens.IssueEmailToken("ghost@x.com")
	require.NoError(t, err)
	_, err = f.svc.ConfirmEmail(context.Background(), ghost)
	requireDomainError(t, err, http.StatusBadRequest, MsgVerificationError)
}

func TestRequestConfirmationEmailDoesNotEnumerate(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "alice@x.com", "pw")
	f.register(t, "bob", "bob@x.com", "pw")
	f.confirm(t, "bob@x.com")
	f.dispatcher.events = nil

	var replies []string
	for _, email := range []string{"ghost@x.com", "alice@x.com", "bob@x.com"} {
		msg, err := f.svc.RequestConfirmationEmail(context.Background(), email, "http://api.local")
		require.NoError(t, err)
		replies = append(replies, msg)
	}
	assert.Equal(t, []string{MsgCheckEmail, MsgCheckEmail, MsgCheckEmail}, replies)

	published := f.dispatcher.published(events.EventConfirmationEmailRequested)
	require.Len(t, published, 1)
	assert.Equal(t, "alice@x.com", published[0].Payload.(events.ConfirmationEmailPayload).Email)
}

func TestForgotPasswordDoesNotEnumerate(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "alice@x.com", "pw")

	known, err := f.svc.ForgotPassword(context.Background(), "alice@x.com")
	require.NoError(t, err)
	unknown, err := f.svc.ForgotPassword(context.Background(), "ghost@x.com")
	require.NoError(t, err)
	assert.Equal(t, known, unknown)
	assert.Equal(t, MsgResetLinkSent, known)

	published := f.dispatcher.published(events.EventPasswordResetRequested)
	require.Len(t, published, 1)
	payload := published[0].Payload.(events.PasswordResetPayload)
	sub, err := f.tokens.SubjectFor(payload.Token, domain.TokenPurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", sub)
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "alice@x.com", "old-password")
	f.confirm(t, "alice@x.com")
	f.cache.invalidated = nil

	token, _, err := f.tokens.IssueResetToken("alice@x.com")
	require.NoError(t, err)

	msg, err := f.svc.ResetPassword(context.Background(), token, "new-password")
	require.NoError(t, err)
	assert.Equal(t, MsgPasswordReset, msg)
	assert.Equal(t, []string{"alice"}, f.cache.invalidated)

	_, err = f.svc.Login(context.Background(), "alice", "old-password")
	requireDomainError(t, err, http.StatusUnauthorized, MsgBadCredentials)
	_, err = f.svc.Login(context.Background(), "alice", "new-password")
	require.NoError(t, err)
}

func TestResetPasswordFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "alice@x.com", "pw")

	_, err := f.svc.ResetPassword(context.Background(), "garbage", "new")
	requireDomainError(t, err, http.StatusUnauthorized, MsgInvalidResetToken)

	emailToken, _, err := f.tokens.IssueEmailToken("alice@x.com")
	require.NoError(t, err)
	_, err = f.svc.ResetPassword(context.Background(), emailToken, "new")
	requireDomainError(t, err, http.StatusUnauthorized, MsgInvalidResetToken)

	ghost, _, err := f.tokens.IssueResetToken("ghost@x.com")
	require.NoError(t, err)
	_, err = f.svc.ResetPassword(context.Background(), ghost, "new")
	requireDomainError(t, err, http.StatusUnauthorized, MsgInvalidResetToken)
}

func TestGravatarURL(t *testing.T) {
	assert.Equal(t, GravatarURL("Alice@X.com "), GravatarURL("alice@x.com"))
	assert.Equal(t,
		"https://www.gravatar.com/avatar/d41d8cd98f00b204e9800998ecf8427e?d=identicon",
		GravatarURL(""))
}
