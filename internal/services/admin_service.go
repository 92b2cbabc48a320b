package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

// AdminSession is returned by a successful admin login
type AdminSession struct {
	Admin       *models.Admin `json:"admin"`
	AccessToken string        `json:"accessToken"`
	ExpiresAt   time.Time     `json:"expiresAt"`
}

// AdminService handles back-office accounts
type AdminService struct {
	admins AdminStore
	auth   *AuthService
	log    *logrus.Logger
	now    func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(admins AdminStore, auth *AuthService, log *logrus.Logger) *AdminService {
	return &AdminService{admins: admins, auth: auth, log: log, now: time.Now}
}

// Login checks admin credentials and issues an admin-namespace token.
func (s *AdminService) Login(ctx context.Context, login models.AdminLogin, info models.SessionInfo) (*AdminSession, error) {
	invalid := NewAuthError(CodeBadCredential, "invalid email or password")

	admin, err := s.admins.FindByEmail(ctx, utils.NormalizeEmail(login.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(login.Password)); err != nil {
		s.log.WithField("email", admin.Email).Warn("failed admin login attempt")
		return nil, invalid
	}

	token, err := s.auth.GenerateAdminToken(admin.ID.Hex(), admin.Email)
	if err != nil {
		return nil, err
	}
	session := models.SessionToken{Token: token.Token, Device: info.Device, IP: info.IP, CreatedAt: s.now(), ExpiresAt: token.ExpiresAt}
	if err := s.admins.PushSession(ctx, admin.ID.Hex(), session, models.MaxSessions); err != nil {
		return nil, err
	}
	return &AdminSession{Admin: admin, AccessToken: token.Token, ExpiresAt: token.ExpiresAt}, nil
}

// Logout drops one admin token.
func (s *AdminService) Logout(ctx context.Context, adminID, token string) error {
	return notFoundAs(s.admins.PullSession(ctx, adminID, token), "admin")
}

// GetByID loads an admin.
func (s *AdminService) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	admin, err := s.admins.FindByID(ctx, id)
	return admin, notFoundAs(err, "admin")
}

// Seed creates the first admin account when none exists for email.
// It reports whether an account was created.
func (s *AdminService) Seed(ctx context.Context, name, email, password string) (bool, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}
	if _, err := s.admins.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if problems := utils.ValidatePassword(password); len(problems) > 0 {
		return false, fmt.Errorf("admin password rejected: %s", strings.Join(problems, ", "))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	if name == "" {
		name = "Administrator"
	}

	now := s.now()
	admin := &models.Admin{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     email,
		Password:  string(hash),
		Tokens:    []models.SessionToken{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return false, err
	}
	s.log.WithField("email", email).Info("seeded admin account")
	return true, nil
}
