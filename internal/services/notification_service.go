package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

// NotificationPublisher receives every notification after it is stored.
type NotificationPublisher interface {
	Publish(n *models.Notification)
}

// CreateNotificationInput describes a new in-app notification
type CreateNotificationInput struct {
	RecipientType models.RecipientType
	UserID        string
	GuestEmail    string
	Title         string
	Body          string
	Type          models.NotificationType
	Data          map[string]interface{}
	Priority      models.NotificationPriority
	ExpiresAt     *time.Time
	Metadata      *models.NotificationMetadata
}

// ListNotificationsInput filters and paginates an inbox
type ListNotificationsInput struct {
	Type  models.NotificationType
	Read  *bool
	Page  int
	Limit int
}

// NotificationPage is one page of an inbox
type NotificationPage struct {
	Items      []*models.Notification `json:"items"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"totalPages"`
}

// NotificationService handles in-app notification business logic
type NotificationService struct {
	store     NotificationStore
	publisher NotificationPublisher
	log       *logrus.Logger
	now       func() time.Time
}

// NewNotificationService creates a new notification service. publisher may be nil.
func NewNotificationService(store NotificationStore, publisher NotificationPublisher, log *logrus.Logger) *NotificationService {
	return &NotificationService{store: store, publisher: publisher, log: log, now: time.Now}
}

// Create validates and persists a notification with read and clicked unset.
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	if !in.RecipientType.IsValid() {
		return nil, NewValidationError("recipientType must be one of user, guest, admin")
	}
	if !in.Type.IsValid() {
		return nil, NewValidationError("invalid notification type: %q", in.Type)
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Body) == "" {
		return nil, NewValidationError("title and body are required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !in.Priority.IsValid() {
		return nil, NewValidationError("invalid priority: %q", in.Priority)
	}

	now := s.now()
	n := &models.Notification{
		RecipientType: in.RecipientType,
		Title:         in.Title,
		Body:          in.Body,
		Type:          in.Type,
		Data:          in.Data,
		Priority:      in.Priority,
		ExpiresAt:     now.Add(models.NotificationTTL),
		Metadata:      in.Metadata,
		CreatedAt:     now,
	}
	if in.ExpiresAt != nil {
		n.ExpiresAt = *in.ExpiresAt
	}

	email := utils.NormalizeEmail(in.GuestEmail)
	switch in.RecipientType {
	case models.RecipientUser:
		if in.UserID == "" || email != "" {
			return nil, NewValidationError("user notifications require userId and no guestEmail")
		}
		oid, err := primitive.ObjectIDFromHex(in.UserID)
		if err != nil {
			return nil, NewValidationError("invalid userId")
		}
		n.UserID = &oid
	case models.RecipientGuest:
		if email == "" || in.UserID != "" {
			return nil, NewValidationError("guest notifications require guestEmail and no userId")
		}
		if !utils.IsValidEmail(email) {
			return nil, NewValidationError("invalid guestEmail")
		}
		n.GuestEmail = email
	case models.RecipientAdmin:
		if email != "" {
			return nil, NewValidationError("admin notifications cannot target a guest email")
		}
		if in.UserID != "" {
			oid, err := primitive.ObjectIDFromHex(in.UserID)
			if err != nil {
				return nil, NewValidationError("invalid userId")
			}
			n.UserID = &oid
		}
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.Publish(n)
	}
	return n, nil
}

// List returns one page of live notifications for r, newest first.
func (s *NotificationService) List(ctx context.Context, r models.Recipient, in ListNotificationsInput) (*NotificationPage, error) {
	if in.Type != "" && !in.Type.IsValid() {
		return nil, NewValidationError("invalid notification type: %q", in.Type)
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 {
		in.Limit = 20
	}
	if in.Limit > 100 {
		in.Limit = 100
	}

	items, total, err := s.store.Find(ctx, models.NotificationQuery{
		Recipient: r,
		Type:      in.Type,
		Read:      in.Read,
		Page:      in.Page,
		Limit:     in.Limit,
		Now:       s.now(),
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Notification{}
	}
	return &NotificationPage{
		Items:      items,
		Total:      total,
		Page:       in.Page,
		Limit:      in.Limit,
		TotalPages: int((total + int64(in.Limit) - 1) / int64(in.Limit)),
	}, nil
}

// UnreadCount counts live unread notifications for r.
func (s *NotificationService) UnreadCount(ctx context.Context, r models.Recipient) (int64, error) {
	return s.store.CountUnread(ctx, r, s.now())
}

// MarkAsRead flips read to true. Repeated calls succeed.
func (s *NotificationService) MarkAsRead(ctx context.Context, r models.Recipient, id string) (*models.Notification, error) {
	n, err := s.store.MarkRead(ctx, r, id, s.now())
	return n, notFoundAs(err, "notification")
}

// MarkAllAsRead marks every unread notification of r as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, r models.Recipient) (int64, error) {
	return s.store.MarkAllRead(ctx, r, s.now())
}

// MarkClicked flips clicked to true. Clicking implies reading.
func (s *NotificationService) MarkClicked(ctx context.Context, r models.Recipient, id string) (*models.Notification, error) {
	n, err := s.store.MarkClicked(ctx, r, id, s.now())
	return n, notFoundAs(err, "notification")
}

// Delete removes one notification owned by r.
func (s *NotificationService) Delete(ctx context.Context, r models.Recipient, id string) error {
	return notFoundAs(s.store.Delete(ctx, r, id), "notification")
}

func notFoundAs(err error, resource string) error {
	if errors.Is(err, ErrNotFound) {
		return NewNotFoundError(resource)
	}
	return err
}
