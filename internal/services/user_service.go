package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

// AuthSession is the token pair handed to a client after sign-in
type AuthSession struct {
	User             *models.User `json:"user"`
	AccessToken      string       `json:"accessToken"`
	RefreshToken     string       `json:"refreshToken"`
	AccessExpiresAt  time.Time    `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time    `json:"refreshExpiresAt"`
}

// PreferencesUpdate carries the toggles a client wants to change
type PreferencesUpdate struct {
	Email        *bool `json:"email"`
	Push         *bool `json:"push"`
	OrderUpdates *bool `json:"orderUpdates"`
	Promotions   *bool `json:"promotions"`
}

// UserService handles user-related business logic
type UserService struct {
	users UserStore
	auth  *AuthService
	email *EmailService
	log   *logrus.Logger
	now   func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users UserStore, auth *AuthService, email *EmailService, log *logrus.Logger) *UserService {
	return &UserService{users: users, auth: auth, email: email, log: log, now: time.Now}
}

// Register creates a customer account. A guest account with the same
// email is upgraded in place so its orders stay attached.
func (s *UserService) Register(ctx context.Context, reg models.UserRegistration, info models.SessionInfo) (*AuthSession, error) {
	email := utils.NormalizeEmail(reg.Email)
	name := utils.SanitizeString(reg.Name)
	if !utils.IsValidEmail(email) {
		return nil, NewValidationError("invalid email address")
	}
	if len(name) < 2 {
		return nil, NewValidationError("name must be at least 2 characters")
	}
	if problems := utils.ValidatePassword(reg.Password); len(problems) > 0 {
		return nil, NewValidationError("password validation failed: %s", strings.Join(problems, ", "))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil && !user.IsGuest():
		return nil, NewConflictError("an account with this email already exists")
	case err == nil:
		user.Name = name
		user.Password = string(hash)
		user.Role = models.UserRoleCustomer
		if reg.Phone != "" {
			user.Phone = utils.SanitizeString(reg.Phone)
		}
		user.UpdatedAt = now
		if err := s.users.Save(ctx, user); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		user = &models.User{
			ID:                      primitive.NewObjectID(),
			Name:                    name,
			Email:                   email,
			Password:                string(hash),
			Role:                    models.UserRoleCustomer,
			Phone:                   utils.SanitizeString(reg.Phone),
			Wishlist:                []string{},
			NotificationPreferences: models.DefaultNotificationPreferences(),
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return nil, NewConflictError("an account with this email already exists")
			}
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.SendVerification(ctx, user); err != nil {
		s.log.WithError(err).WithField("email", user.Email).Warn("failed to send verification email")
	}
	return s.issueSession(ctx, user, info)
}

// RegisterGuest creates or reuses a passwordless guest account.
func (s *UserService) RegisterGuest(ctx context.Context, reg models.GuestRegistration, info models.SessionInfo) (*AuthSession, error) {
	email := utils.NormalizeEmail(reg.Email)
	if !utils.IsValidEmail(email) {
		return nil, NewValidationError("invalid email address")
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil && !user.IsGuest():
		return nil, NewConflictError("an account with this email already exists, please log in")
	case err == nil:
	case errors.Is(err, ErrNotFound):
		now := s.now()
		name := utils.SanitizeString(reg.Name)
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		user = &models.User{
			ID:                      primitive.NewObjectID(),
			Name:                    name,
			Email:                   email,
			Role:                    models.UserRoleGuest,
			Phone:                   utils.SanitizeString(reg.Phone),
			Wishlist:                []string{},
			NotificationPreferences: models.DefaultNotificationPreferences(),
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return s.issueSession(ctx, user, info)
}

// Login checks credentials and opens a new session.
func (s *UserService) Login(ctx context.Context, login models.UserLogin, info models.SessionInfo) (*AuthSession, error) {
	invalid := NewAuthError(CodeBadCredential, "invalid email or password")
	if len(login.Password) > 128 {
		return nil, invalid
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(login.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if user.Password == "" {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(login.Password)); err != nil {
		return nil, invalid
	}
	return s.issueSession(ctx, user, info)
}

// Refresh exchanges a live refresh token for a new access token.
func (s *UserService) Refresh(ctx context.Context, refreshToken string, info models.SessionInfo) (IssuedToken, error) {
	claims, err := s.auth.ValidateRefreshToken(refreshToken)
	if err != nil {
		return IssuedToken{}, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return IssuedToken{}, NewAuthError(CodeUserNotFound, "user no longer exists")
	}
	if err != nil {
		return IssuedToken{}, err
	}
	if !user.HasRefreshSession(refreshToken, s.now()) {
		return IssuedToken{}, NewAuthError(CodeTokenRevoked, "refresh token has been revoked")
	}

	access, err := s.auth.GenerateAccessToken(user.ID.Hex(), user.Email, string(user.Role))
	if err != nil {
		return IssuedToken{}, err
	}
	session := models.SessionToken{Token: access.Token, Device: info.Device, IP: info.IP, CreatedAt: s.now(), ExpiresAt: access.ExpiresAt}
	if err := s.users.PushSession(ctx, user.ID.Hex(), "tokens", session, models.MaxSessions); err != nil {
		return IssuedToken{}, err
	}
	return access, nil
}

// Logout drops the given access and refresh tokens from the user's sessions.
func (s *UserService) Logout(ctx context.Context, userID, accessToken, refreshToken string) error {
	if accessToken != "" {
		if err := s.users.PullSession(ctx, userID, "tokens", accessToken); err != nil {
			return notFoundAs(err, "user")
		}
	}
	if refreshToken != "" {
		if err := s.users.PullSession(ctx, userID, "refreshTokens", refreshToken); err != nil {
			return notFoundAs(err, "user")
		}
	}
	return nil
}

// ForgotPassword emails a reset link. Unknown emails succeed silently.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		s.log.WithField("email", email).Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if user.IsGuest() {
		return nil
	}

	token := utils.GenerateRandomString(32)
	expires := s.now().Add(models.ResetTokenTTL)
	user.ResetPasswordToken = utils.HashToken(token)
	user.ResetPasswordExpires = &expires
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}

	if err := s.email.SendPasswordResetEmail(ctx, user.Email, user.Name, token); err != nil {
		return &AppError{Status: http.StatusInternalServerError, Code: "EMAIL_FAILED", Message: "could not send reset email", Err: err}
	}
	return nil
}

// ResetPassword sets a new password for a live reset token and ends
// every existing session.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if problems := utils.ValidatePassword(newPassword); len(problems) > 0 {
		return NewValidationError("password validation failed: %s", strings.Join(problems, ", "))
	}
	user, err := s.users.FindByResetToken(ctx, utils.HashToken(token), s.now())
	if errors.Is(err, ErrNotFound) {
		return NewValidationError("reset token is invalid or has expired")
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hash)
	user.ResetPasswordToken = ""
	user.ResetPasswordExpires = nil
	user.Tokens = []models.SessionToken{}
	user.RefreshTokens = []models.SessionToken{}
	user.UpdatedAt = s.now()
	return s.users.Save(ctx, user)
}

// SendVerification issues a fresh verification token and emails it.
func (s *UserService) SendVerification(ctx context.Context, user *models.User) error {
	if user.IsVerified {
		return nil
	}
	token := utils.GenerateRandomString(32)
	expires := s.now().Add(models.VerificationTokenTTL)
	user.VerificationToken = utils.HashToken(token)
	user.VerificationExpires = &expires
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}
	return s.email.SendVerificationEmail(ctx, user.Email, user.Name, token)
}

// VerifyEmail marks the owner of a live verification token as verified.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	user, err := s.users.FindByVerificationToken(ctx, utils.HashToken(token), s.now())
	if errors.Is(err, ErrNotFound) {
		return nil, NewValidationError("verification token is invalid or has expired")
	}
	if err != nil {
		return nil, err
	}
	user.IsVerified = true
	user.VerificationToken = ""
	user.VerificationExpires = nil
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID loads a user.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	return user, notFoundAs(err, "user")
}

// GetWishlist returns the product ids on the user's wishlist.
func (s *UserService) GetWishlist(ctx context.Context, userID string) ([]string, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Wishlist == nil {
		return []string{}, nil
	}
	return user.Wishlist, nil
}

// AddToWishlist adds a product once.
func (s *UserService) AddToWishlist(ctx context.Context, userID, productID string) error {
	if !utils.IsObjectID(productID) {
		return NewValidationError("invalid product id")
	}
	return notFoundAs(s.users.AddToWishlist(ctx, userID, productID), "user")
}

// RemoveFromWishlist removes a product if present.
func (s *UserService) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	if !utils.IsObjectID(productID) {
		return NewValidationError("invalid product id")
	}
	return notFoundAs(s.users.RemoveFromWishlist(ctx, userID, productID), "user")
}

// RegisterPushToken stores the device token used for push notifications.
func (s *UserService) RegisterPushToken(ctx context.Context, userID, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return NewValidationError("push token is required")
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.PushToken = token
	user.PushPlatform = platform
	user.UpdatedAt = s.now()
	return s.users.Save(ctx, user)
}

// UpdatePreferences applies the supplied toggles and returns the result.
func (s *UserService) UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (models.NotificationPreferences, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return models.NotificationPreferences{}, err
	}
	prefs := &user.NotificationPreferences
	if update.Email != nil {
		prefs.Email = *update.Email
	}
	if update.Push != nil {
		prefs.Push = *update.Push
	}
	if update.OrderUpdates != nil {
		prefs.OrderUpdates = *update.OrderUpdates
	}
	if update.Promotions != nil {
		prefs.Promotions = *update.Promotions
	}
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return models.NotificationPreferences{}, err
	}
	return *prefs, nil
}

func (s *UserService) issueSession(ctx context.Context, user *models.User, info models.SessionInfo) (*AuthSession, error) {
	id := user.ID.Hex()
	access, err := s.auth.GenerateAccessToken(id, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := s.auth.GenerateRefreshToken(id, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.PushSession(ctx, id, "tokens", models.SessionToken{
		Token: access.Token, Device: info.Device, IP: info.IP, CreatedAt: now, ExpiresAt: access.ExpiresAt,
	}, models.MaxSessions); err != nil {
		return nil, err
	}
	if err := s.users.PushSession(ctx, id, "refreshTokens", models.SessionToken{
		Token: refresh.Token, Device: info.Device, IP: info.IP, CreatedAt: now, ExpiresAt: refresh.ExpiresAt,
	}, models.MaxSessions); err != nil {
		return nil, err
	}

	return &AuthSession{
		User:             user,
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
