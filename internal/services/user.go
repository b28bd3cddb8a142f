package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/mailer"
	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

const otpTTL = 10 * time.Minute

// UserService handles account lifecycle: registration, login, admin
// management and password reset.
type UserService struct {
	store       store.Store
	authorizer  *auth.Authorizer
	notifier    mailer.Notifier
	log         zerolog.Logger
	bcryptCost  int
	frontendURL string
}

func NewUserService(s store.Store, a *auth.Authorizer, n mailer.Notifier, log zerolog.Logger, bcryptCost int, frontendURL string) *UserService {
	return &UserService{
		store:       s,
		authorizer:  a,
		notifier:    n,
		log:         log,
		bcryptCost:  bcryptCost,
		frontendURL: frontendURL,
	}
}

// Register creates a self-service account with the user role and returns
// the new account plus a fresh bearer token.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("%w: user already exists", model.ErrConflict)
	} else if err != model.ErrNotFound {
		return nil, "", err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", err
	}
	u, err := s.store.Users().Create(ctx, &model.User{
		Username:     strings.TrimSpace(username),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.authorizer.IssueToken(ctx, u.UserID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials and issues a token. Bad email and bad password
// are indistinguishable to the caller. Deactivated accounts fail with
// model.ErrForbidden after the password check.
func (s *UserService) Login(ctx context.Context, email, password string, device *model.ActivityDevice) (*model.User, string, error) {
	u, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == model.ErrNotFound {
		return nil, "", model.ErrUnauthorized
	} else if err != nil {
		return nil, "", err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", model.ErrUnauthorized
	}
	if !u.IsActive {
		return nil, "", fmt.Errorf("%w: account deactivated", model.ErrForbidden)
	}

	os := "Unknown Device"
	if device != nil && device.OS != "" {
		os = device.OS
	}
	s.recordActivity(ctx, u.UserID, &model.ActivityLog{
		UserID:   u.UserID,
		Type:     model.ActivityLogin,
		Details:  fmt.Sprintf("User logged in from %s", os),
		Metadata: device,
	})

	token, err := s.authorizer.IssueToken(ctx, u.UserID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Logout records the logout with the reported session duration.
func (s *UserService) Logout(ctx context.Context, userID string, durationMinutes int) error {
	_, err := s.store.Activity().Create(ctx, &model.ActivityLog{
		UserID:          userID,
		Type:            model.ActivityLogout,
		Details:         fmt.Sprintf("User logged out after %d minutes", durationMinutes),
		DurationMinutes: &durationMinutes,
	})
	return err
}

// RecordSessionPulse appends a session_duration activity entry.
func (s *UserService) RecordSessionPulse(ctx context.Context, userID string, durationMinutes int) error {
	_, err := s.store.Activity().Create(ctx, &model.ActivityLog{
		UserID:          userID,
		Type:            model.ActivitySessionDuration,
		Details:         fmt.Sprintf("Captured session pulse: %d minutes", durationMinutes),
		DurationMinutes: &durationMinutes,
	})
	return err
}

// ForgotPassword stores a short-lived OTP on the account and emails it.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}
	expires := time.Now().Add(otpTTL)
	u.ResetOTP = &otp
	u.ResetOTPExpires = &expires
	if _, err := s.store.Users().Update(ctx, u); err != nil {
		return err
	}

	if err := s.notifier.Send(ctx, u.Email, mailer.SubjectResetOTP, mailer.OTPBody(otp)); err != nil {
		return err
	}
	return nil
}

// ResetPassword exchanges a valid OTP for a new password and clears the OTP.
func (s *UserService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	u, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == model.ErrNotFound {
			return fmt.Errorf("%w: invalid or expired OTP", model.ErrValidation)
		}
		return err
	}
	if u.ResetOTP == nil || *u.ResetOTP != otp ||
		u.ResetOTPExpires == nil || time.Now().After(*u.ResetOTPExpires) {
		return fmt.Errorf("%w: invalid or expired OTP", model.ErrValidation)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.ResetOTP = nil
	u.ResetOTPExpires = nil
	_, err = s.store.Users().Update(ctx, u)
	return err
}

// ListUsers returns every account, for the admin view.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.store.Users().List(ctx)
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().GetByID(ctx, userID)
}

// AdminCreateUser provisions an account on behalf of a user and emails the
// credentials. Email delivery happens off the request path; a failure is
// logged, not surfaced.
func (s *UserService) AdminCreateUser(ctx context.Context, username, email, password, role string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: user already exists", model.ErrConflict)
	} else if err != model.ErrNotFound {
		return nil, err
	}
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, fmt.Errorf("%w: invalid role %q", model.ErrValidation, role)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Users().Create(ctx, &model.User{
		Username:     strings.TrimSpace(username),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		body := mailer.CredentialsBody(u.Username, password, s.frontendURL)
		if err := s.notifier.Send(context.Background(), u.Email, mailer.SubjectCredentials, body); err != nil {
			s.log.Error().Err(err).Str("to", u.Email).Msg("credentials email failed")
		}
	}()
	return u, nil
}

// UpdateUserParams carries the optional fields of an admin user update.
type UpdateUserParams struct {
	Username *string
	Email    *string
	Role     *string
	IsActive *bool
	Password *string
}

// UpdateUser applies a partial update to an account.
func (s *UserService) UpdateUser(ctx context.Context, userID string, p UpdateUserParams) (*model.User, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Username != nil && *p.Username != "" {
		u.Username = *p.Username
	}
	if p.Email != nil && *p.Email != "" {
		u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Role != nil && *p.Role != "" {
		if *p.Role != model.RoleUser && *p.Role != model.RoleAdmin {
			return nil, fmt.Errorf("%w: invalid role %q", model.ErrValidation, *p.Role)
		}
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.Password != nil && *p.Password != "" {
		hash, err := auth.HashPassword(*p.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	return s.store.Users().Update(ctx, u)
}

// DeleteUser removes an account. Administrative accounts cannot be deleted.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Role == model.RoleAdmin {
		return fmt.Errorf("%w: administrative accounts cannot be deleted", model.ErrForbidden)
	}
	return s.store.Users().Delete(ctx, userID)
}

func (s *UserService) recordActivity(ctx context.Context, userID string, e *model.ActivityLog) {
	if _, err := s.store.Activity().Create(ctx, e); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("type", e.Type).
			Msg("failed to record activity")
	}
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
