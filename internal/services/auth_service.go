package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType separates the three signed token namespaces
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypeAdmin   TokenType = "admin"
)

const tokenIssuer = "storefront"

// AuthService signs and verifies access, refresh and admin tokens
type AuthService struct {
	jwtSecret     string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(jwtSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token with its expiry
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// AccessTTL is the lifetime of access and admin tokens.
func (s *AuthService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL is the lifetime of refresh tokens.
func (s *AuthService) RefreshTTL() time.Duration { return s.refreshTTL }

// GenerateAccessToken issues a short-lived user token.
func (s *AuthService) GenerateAccessToken(userID, email, role string) (IssuedToken, error) {
	return s.sign(TokenTypeAccess, userID, email, role, s.accessTTL, s.jwtSecret)
}

// GenerateRefreshToken issues a long-lived token that can mint access tokens.
func (s *AuthService) GenerateRefreshToken(userID, email, role string) (IssuedToken, error) {
	return s.sign(TokenTypeRefresh, userID, email, role, s.refreshTTL, s.refreshSecret)
}

// GenerateAdminToken issues a token in the admin namespace.
func (s *AuthService) GenerateAdminToken(adminID, email string) (IssuedToken, error) {
	return s.sign(TokenTypeAdmin, adminID, email, "admin", s.accessTTL, s.jwtSecret)
}

func (s *AuthService) sign(typ TokenType, subject, email, role string, ttl time.Duration, secret string) (IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := &JWTClaims{
		UserID:    subject,
		Email:     email,
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return IssuedToken{Token: tokenString, ExpiresAt: expiresAt}, nil
}

// ValidateAccessToken verifies a user access token.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	return s.validate(tokenString, TokenTypeAccess, s.jwtSecret)
}

// ValidateRefreshToken verifies a refresh token.
func (s *AuthService) ValidateRefreshToken(tokenString string) (*JWTClaims, error) {
	return s.validate(tokenString, TokenTypeRefresh, s.refreshSecret)
}

// ValidateAdminToken verifies an admin-namespace token.
func (s *AuthService) ValidateAdminToken(tokenString string) (*JWTClaims, error) {
	return s.validate(tokenString, TokenTypeAdmin, s.jwtSecret)
}

// PeekTokenType reads the typ claim after checking the signature against
// the access secret. Expired tokens still report their type.
func (s *AuthService) PeekTokenType(tokenString string) TokenType {
	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc(s.jwtSecret), jwt.WithTimeFunc(s.now))
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return ""
	}
	return claims.TokenType
}

func (s *AuthService) keyFunc(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}

func (s *AuthService) validate(tokenString string, want TokenType, secret string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, NewAuthError(CodeTokenMissing, "Token required")
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc(secret),
		jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &AppError{Status: 401, Code: CodeTokenExpired, Message: "Token expired", Err: err}
		}
		return nil, &AppError{Status: 401, Code: CodeTokenInvalid, Message: "Invalid token", Err: fmt.Errorf("failed to parse token: %w", err)}
	}
	if !token.Valid {
		return nil, NewAuthError(CodeTokenInvalid, "Invalid token")
	}
	if claims.TokenType != want {
		return nil, NewAuthError(CodeTokenInvalid, fmt.Sprintf("Expected %s token", want))
	}
	return claims, nil
}
