package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/models"
	"github.com/xaenox/taskmaster/internal/notifier"
	"github.com/xaenox/taskmaster/internal/storage"
)

var (
	// ErrEmailTaken is returned when registering an already used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const (
	verificationTTL = 30 * time.Minute
	resetTTL        = 15 * time.Minute
)

// Service handles registration, login and the two single-use code flows
// (email verification and password reset). Codes are emailed through the
// same Notifier the reminder engine uses; a failed send is logged and the
// operation still succeeds, since codes can be re-requested.
type Service struct {
	store    storage.Storage
	notifier notifier.Notifier
	hasher   *PasswordHasher
	jwt      *JWTManager
	logger   *zap.Logger
}

func NewService(store storage.Storage, n notifier.Notifier, jwt *JWTManager, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: n,
		hasher:   NewPasswordHasher(),
		jwt:      jwt,
		logger:   logger,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Company  string
	Role     string
}

// Register creates an unverified user, issues a verification code and
// returns the user together with a bearer token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	if _, err := s.store.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, "", fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Email:     in.Email,
		Password:  hash,
		Company:   in.Company,
		Role:      in.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	s.issueCode(ctx, user, models.TokenVerification, verificationTTL,
		"Verify your email",
		"Your TaskMaster verification code is: %s\n\nIt expires in 30 minutes.")

	token, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// Login verifies the credentials and returns the user with a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch user: %w", err)
	}

	if !s.hasher.Verify(password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// VerifyEmail consumes a verification code and marks the owning user
// verified.
func (s *Service) VerifyEmail(ctx context.Context, code string) error {
	token, err := s.store.ConsumeToken(ctx, models.TokenVerification, code, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.store.SetEmailVerified(ctx, token.UserID)
}

// ResendVerification issues a fresh verification code for an unverified
// account, invalidating earlier codes. The result is identical whether the
// email is unknown, unverified, or already verified.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	if err := s.store.DeleteUserTokens(ctx, models.TokenVerification, user.ID); err != nil {
		return fmt.Errorf("failed to clear old verification codes: %w", err)
	}

	s.issueCode(ctx, user, models.TokenVerification, verificationTTL,
		"Verify your email",
		"Your TaskMaster verification code is: %s\n\nIt expires in 30 minutes.")
	return nil
}

// RequestPasswordReset issues a reset code for the account, if one exists.
// The result is identical either way so the endpoint does not reveal which
// emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	// A fresh request invalidates earlier codes.
	if err := s.store.DeleteUserTokens(ctx, models.TokenReset, user.ID); err != nil {
		return fmt.Errorf("failed to clear old reset codes: %w", err)
	}

	s.issueCode(ctx, user, models.TokenReset, resetTTL,
		"Reset your password",
		"Your TaskMaster password reset code is: %s\n\nIt expires in 15 minutes.")
	return nil
}

// ResetPassword consumes a reset code and replaces the user's password.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) error {
	token, err := s.store.ConsumeToken(ctx, models.TokenReset, code, time.Now().UTC())
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.store.UpdatePassword(ctx, token.UserID, hash)
}

func (s *Service) issueCode(ctx context.Context, user *models.User, kind models.TokenKind, ttl time.Duration, subject, bodyFormat string) {
	now := time.Now().UTC()
	token := &models.Token{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Code:      generateCode(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.store.SaveToken(ctx, kind, token); err != nil {
		s.logger.Error("Failed to save code",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("user_id", user.ID))
		return
	}

	err := s.notifier.Send(ctx, notifier.Message{
		To:      user.Email,
		Subject: subject,
		Body:    fmt.Sprintf(bodyFormat, token.Code),
	})
	if err != nil {
		s.logger.Error("Failed to email code",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("user_id", user.ID))
	}
}

// generateCode returns a 6-digit numeric code.
func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a uuid-derived code rather than crashing.
		return uuid.New().String()[:6]
	}
	return fmt.Sprintf("%06d", n.Int64())
}
