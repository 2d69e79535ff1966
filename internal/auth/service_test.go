package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vpnmarket/internal/apperr"
	"vpnmarket/internal/cache"
	"vpnmarket/internal/models"
	"vpnmarket/internal/store"
)

type fakeMailer struct {
	sent []string // recipient addresses
	body string
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, to)
	m.body = body
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeMailer, cache.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	sessions := cache.NewMemory()
	mailer := &fakeMailer{}
	tokens := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	return NewService(store.New(db), sessions, tokens, mailer), mailer, sessions
}

func register(t *testing.T, svc *Service, email string) *Session {
	t.Helper()
	session, err := svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  "password123",
		FirstName: "Test",
	})
	require.NoError(t, err)
	return session
}

func TestRegisterIssuesSession(t *testing.T) {
	svc, _, _ := newTestService(t)

	session := register(t, svc, "user@example.com")
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, "user@example.com", session.User.Email)
	assert.Equal(t, "ru", session.User.Language, "language defaults to ru")
	assert.NotEqual(t, "password123", session.User.PasswordHash)

	claims, err := svc.Tokens.VerifyAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID.String(), claims.UserID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "user@example.com")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:     "user@example.com",
		Password:  "different-password",
		FirstName: "Other",
	})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusConflict, ae.Status)
	assert.Equal(t, "User with this email already exists", ae.Message)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "user@example.com")

	session, err := svc.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", session.User.Email)
	assert.NotEmpty(t, session.AccessToken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "user@example.com")

	_, err := svc.Login(context.Background(), "user@example.com", "wrong")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, "Invalid email or password", ae.Message)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", "password123")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	// Same message as a bad password so the response does not reveal
	// whether the account exists.
	assert.Equal(t, "Invalid email or password", ae.Message)
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, _, _ := newTestService(t)
	session := register(t, svc, "user@example.com")

	pair, err := svc.Refresh(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// The old refresh token no longer matches the stored slot.
	_, err = svc.Refresh(context.Background(), session.RefreshToken)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)

	// The rotated one works.
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	session := register(t, svc, "user@example.com")

	forger := NewTokenManager("wrong-access", "wrong-refresh", 15*time.Minute, 7*24*time.Hour)
	forged, err := forger.NewRefreshToken(session.User.ID, session.User.Email)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), forged)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
}

func TestRefreshAfterLogout(t *testing.T) {
	svc, _, _ := newTestService(t)
	session := register(t, svc, "user@example.com")

	require.NoError(t, svc.Logout(context.Background(), session.User.ID))

	_, err := svc.Refresh(context.Background(), session.RefreshToken)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
}

func TestForgotPasswordUnknownEmailSilent(t *testing.T) {
	svc, mailer, _ := newTestService(t)

	err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, mailer, sessions := newTestService(t)
	session := register(t, svc, "user@example.com")
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "user@example.com"))
	require.Equal(t, []string{"user@example.com"}, mailer.sent)

	token := findResetToken(t, sessions, session.User.ID.String())

	require.NoError(t, svc.ResetPassword(ctx, token, "new-password-456"))

	_, err := svc.Login(ctx, "user@example.com", "password123")
	assert.Error(t, err, "old password must stop working")

	_, err = svc.Login(ctx, "user@example.com", "new-password-456")
	assert.NoError(t, err)

	// Redeemed tokens are single use.
	err = svc.ResetPassword(ctx, token, "another-password")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "Invalid or expired reset token", ae.Message)
}

func TestResetPasswordRevokesSession(t *testing.T) {
	svc, _, sessions := newTestService(t)
	session := register(t, svc, "user@example.com")
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "user@example.com"))
	token := findResetToken(t, sessions, session.User.ID.String())
	require.NoError(t, svc.ResetPassword(ctx, token, "new-password-456"))

	_, err := svc.Refresh(ctx, session.RefreshToken)
	assert.Error(t, err, "refresh tokens from before the reset must be dead")
}

func TestResetPasswordBogusToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.ResetPassword(context.Background(), "not-a-real-token", "whatever123")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Invalid or expired reset token", ae.Message)
}

// findResetToken digs the emitted reset token out of the session store by
// scanning for the slot whose value is the user id.
func findResetToken(t *testing.T, sessions cache.Store, userID string) string {
	t.Helper()
	mem, ok := sessions.(*cache.Memory)
	require.True(t, ok)
	for _, key := range mem.Keys() {
		if len(key) > len("reset_token:") && key[:len("reset_token:")] == "reset_token:" {
			if v, err := mem.Get(context.Background(), key); err == nil && v == userID {
				return key[len("reset_token:"):]
			}
		}
	}
	t.Fatal("reset token not found in session store")
	return ""
}
