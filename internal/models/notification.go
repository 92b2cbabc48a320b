package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecipientType identifies who a notification is addressed to
type RecipientType string

const (
	RecipientUser  RecipientType = "user"
	RecipientGuest RecipientType = "guest"
	RecipientAdmin RecipientType = "admin"
)

// NotificationType represents different types of notifications
type NotificationType string

const (
	NotificationTypeOrderUpdate NotificationType = "order_update"
	NotificationTypePromotion   NotificationType = "promotion"
	NotificationTypeShipping    NotificationType = "shipping"
	NotificationTypeSystem      NotificationType = "system"
)

// NotificationPriority orders notifications in the client
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// NotificationTTL is the default lifetime before the TTL index removes a document.
const NotificationTTL = 30 * 24 * time.Hour

// IsValid reports whether t is a known notification type.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeOrderUpdate, NotificationTypePromotion, NotificationTypeShipping, NotificationTypeSystem:
		return true
	}
	return false
}

// IsValid reports whether r is a known recipient type.
func (r RecipientType) IsValid() bool {
	switch r {
	case RecipientUser, RecipientGuest, RecipientAdmin:
		return true
	}
	return false
}

// IsValid reports whether p is a known priority.
func (p NotificationPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// NotificationMetadata snapshots the device a push was aimed at
type NotificationMetadata struct {
	Device    string `json:"device,omitempty" bson:"device,omitempty"`
	Platform  string `json:"platform,omitempty" bson:"platform,omitempty"`
	PushToken string `json:"-" bson:"pushToken,omitempty"`
}

// Notification is an in-app notification document
type Notification struct {
	ID            primitive.ObjectID     `json:"_id" bson:"_id,omitempty"`
	UserID        *primitive.ObjectID    `json:"userId,omitempty" bson:"userId,omitempty"`
	GuestEmail    string                 `json:"guestEmail,omitempty" bson:"guestEmail,omitempty"`
	RecipientType RecipientType          `json:"recipientType" bson:"recipientType"`
	Title         string                 `json:"title" bson:"title"`
	Body          string                 `json:"body" bson:"body"`
	Type          NotificationType       `json:"type" bson:"type"`
	Data          map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	Read          bool                   `json:"read" bson:"read"`
	ReadAt        *time.Time             `json:"readAt,omitempty" bson:"readAt,omitempty"`
	Clicked       bool                   `json:"clicked" bson:"clicked"`
	ClickedAt     *time.Time             `json:"clickedAt,omitempty" bson:"clickedAt,omitempty"`
	Priority      NotificationPriority   `json:"priority" bson:"priority"`
	ExpiresAt     time.Time              `json:"expiresAt" bson:"expiresAt"`
	Metadata      *NotificationMetadata  `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt" bson:"createdAt"`
}

// IsExpired reports whether the TTL has passed at now.
func (n *Notification) IsExpired(now time.Time) bool {
	return !n.ExpiresAt.After(now)
}

// Recipient scopes notification queries to one inbox.
// Admin recipients with an empty UserID see the shared admin inbox.
type Recipient struct {
	Type       RecipientType
	UserID     string
	GuestEmail string
}

// Matches reports whether n belongs to the inbox r.
func (r Recipient) Matches(n *Notification) bool {
	if n.RecipientType != r.Type {
		return false
	}
	switch r.Type {
	case RecipientGuest:
		return n.GuestEmail == r.GuestEmail
	case RecipientUser:
		return n.UserID != nil && n.UserID.Hex() == r.UserID
	case RecipientAdmin:
		return n.UserID == nil || n.UserID.Hex() == r.UserID
	}
	return false
}

// NotificationQuery filters a recipient's notification list
type NotificationQuery struct {
	Recipient Recipient
	Type      NotificationType
	Read      *bool
	Page      int
	Limit     int
	Now       time.Time
}

// PushMessage is the provider-independent push payload
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}
