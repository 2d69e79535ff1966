package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"vpnmarket/internal/apperr"
	"vpnmarket/internal/cache"
	"vpnmarket/internal/logging"
	"vpnmarket/internal/models"
	"vpnmarket/internal/store"
)

const (
	bcryptCost    = 12
	resetTokenTTL = time.Hour
)

// Mailer delivers out-of-band messages; SMTP in production, a fake in tests.
type Mailer interface {
	Send(to, subject, body string) error
}

type Service struct {
	Store    *store.Store
	Sessions cache.Store
	Tokens   *TokenManager
	Mailer   Mailer
}

func NewService(st *store.Store, sessions cache.Store, tokens *TokenManager, mailer Mailer) *Service {
	return &Service{Store: st, Sessions: sessions, Tokens: tokens, Mailer: mailer}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Language  string
}

type Session struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func refreshKey(userID string) string { return "refresh_token:" + userID }
func resetKey(token string) string    { return "reset_token:" + token }

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if _, err := s.Store.UserByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("User with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	if in.Language == "" {
		in.Language = "ru"
	}
	user := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Language:     in.Language,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	l.Info("user registered", "user_id", user.ID)
	return &Session{User: user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("Invalid email or password")
		}
		return nil, err
	}

	if !CheckPassword(user.PasswordHash, password) {
		l.Warn("login failed", "user_id", user.ID)
		return nil, apperr.Unauthenticated("Invalid email or password")
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	l.Info("login successful", "user_id", user.ID)
	return &Session{User: user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Refresh verifies the presented token cryptographically before trusting
// its claims, then requires byte equality with the stored slot. The single
// slot per user means a refresh invalidates every older token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.Tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Unauthenticated("Invalid or expired refresh token")
	}

	stored, err := s.Sessions.Get(ctx, refreshKey(claims.UserID))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, apperr.Unauthenticated("Invalid or expired refresh token")
		}
		return nil, err
	}
	if stored != refreshToken {
		return nil, apperr.Unauthenticated("Invalid or expired refresh token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperr.Unauthenticated("Invalid or expired refresh token")
	}
	user, err := s.Store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("Invalid or expired refresh token")
		}
		return nil, err
	}

	return s.issuePair(ctx, user)
}

func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.Sessions.Delete(ctx, refreshKey(userID.String()))
}

// ForgotPassword always succeeds from the caller's point of view so the
// endpoint cannot be used to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")

	user, err := s.Store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.Sessions.Set(ctx, resetKey(token), user.ID.String(), resetTokenTTL); err != nil {
		return err
	}

	body := fmt.Sprintf("Use this token to reset your password: %s\nIt is valid for one hour.", token)
	if err := s.Mailer.Send(user.Email, "Password reset", body); err != nil {
		l.Error("failed to send reset email", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userIDStr, err := s.Sessions.Get(ctx, resetKey(token))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return apperr.BadRequest("Invalid or expired reset token")
		}
		return err
	}

	// Single use: gone the moment it is redeemed.
	if err := s.Sessions.Delete(ctx, resetKey(token)); err != nil {
		return err
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return apperr.BadRequest("Invalid or expired reset token")
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	// Force re-login everywhere.
	return s.Sessions.Delete(ctx, refreshKey(userID.String()))
}

func (s *Service) issuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.Tokens.NewAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.NewRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	// Overwrites any previous slot: one live refresh token per user.
	if err := s.Sessions.Set(ctx, refreshKey(user.ID.String()), refresh, s.Tokens.RefreshTTL()); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
