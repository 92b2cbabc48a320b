package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRole represents user roles in the system
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
	UserRoleGuest    UserRole = "guest"
	UserRoleSeller   UserRole = "seller"
	UserRoleDelivery UserRole = "delivery"
)

// MaxSessions bounds both the access and refresh token lists.
const MaxSessions = 5

const (
	ResetTokenTTL        = 10 * time.Minute
	VerificationTokenTTL = 24 * time.Hour
)

// IsValid reports whether r is a known role.
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleCustomer, UserRoleAdmin, UserRoleGuest, UserRoleSeller, UserRoleDelivery:
		return true
	}
	return false
}

// SessionToken is one issued token with the device it was issued to
type SessionToken struct {
	Token     string    `json:"-" bson:"token"`
	Device    string    `json:"device,omitempty" bson:"device,omitempty"`
	IP        string    `json:"ip,omitempty" bson:"ip,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
}

// NotificationPreferences are per-user channel toggles
type NotificationPreferences struct {
	Email        bool `json:"email" bson:"email"`
	Push         bool `json:"push" bson:"push"`
	OrderUpdates bool `json:"orderUpdates" bson:"orderUpdates"`
	Promotions   bool `json:"promotions" bson:"promotions"`
}

// DefaultNotificationPreferences enables everything except promotions.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{Email: true, Push: true, OrderUpdates: true}
}

// User represents a storefront account
type User struct {
	ID                      primitive.ObjectID      `json:"_id" bson:"_id,omitempty"`
	Name                    string                  `json:"name" bson:"name"`
	Email                   string                  `json:"email" bson:"email"`
	Password                string                  `json:"-" bson:"password,omitempty"`
	Role                    UserRole                `json:"role" bson:"role"`
	Phone                   string                  `json:"phone,omitempty" bson:"phone,omitempty"`
	IsVerified              bool                    `json:"isVerified" bson:"isVerified"`
	Wishlist                []string                `json:"wishlist" bson:"wishlist"`
	Tokens                  []SessionToken          `json:"-" bson:"tokens"`
	RefreshTokens           []SessionToken          `json:"-" bson:"refreshTokens"`
	PushToken               string                  `json:"-" bson:"pushToken,omitempty"`
	PushPlatform            string                  `json:"pushPlatform,omitempty" bson:"pushPlatform,omitempty"`
	NotificationPreferences NotificationPreferences `json:"notificationPreferences" bson:"notificationPreferences"`
	ResetPasswordToken      string                  `json:"-" bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires    *time.Time              `json:"-" bson:"resetPasswordExpires,omitempty"`
	VerificationToken       string                  `json:"-" bson:"verificationToken,omitempty"`
	VerificationExpires     *time.Time              `json:"-" bson:"verificationExpires,omitempty"`
	CreatedAt               time.Time               `json:"createdAt" bson:"createdAt"`
	UpdatedAt               time.Time               `json:"updatedAt" bson:"updatedAt"`
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// IsGuest reports whether the account was created for guest checkout.
func (u *User) IsGuest() bool {
	return u.Role == UserRoleGuest
}

// WantsPush reports whether a push may be sent to this user.
func (u *User) WantsPush() bool {
	return u.PushToken != "" && u.NotificationPreferences.Push
}

// HasSession reports whether token is in the active access token list.
func (u *User) HasSession(token string) bool {
	return findSession(u.Tokens, token) >= 0
}

// HasRefreshSession reports whether token is a live refresh token at now.
func (u *User) HasRefreshSession(token string, now time.Time) bool {
	i := findSession(u.RefreshTokens, token)
	return i >= 0 && now.Before(u.RefreshTokens[i].ExpiresAt)
}

// AppendSession appends s and evicts the oldest entries beyond max.
func AppendSession(list []SessionToken, s SessionToken, max int) []SessionToken {
	list = append(list, s)
	if len(list) > max {
		list = append([]SessionToken(nil), list[len(list)-max:]...)
	}
	return list
}

// RemoveSession drops token from list.
func RemoveSession(list []SessionToken, token string) []SessionToken {
	out := list[:0:0]
	for _, s := range list {
		if s.Token != token {
			out = append(out, s)
		}
	}
	return out
}

func findSession(list []SessionToken, token string) int {
	for i, s := range list {
		if s.Token == token {
			return i
		}
	}
	return -1
}

// UserRegistration represents user registration data
type UserRegistration struct {
	Name     string `json:"name" binding:"required,min=2,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
}

// GuestRegistration creates or reuses a passwordless guest account
type GuestRegistration struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

// UserLogin represents user login data
type UserLogin struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SessionInfo describes the client a token is issued to.
type SessionInfo struct {
	Device string
	IP     string
}
