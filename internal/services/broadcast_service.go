package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront-backend/internal/models"
)

// BroadcastInput is an admin announcement
type BroadcastInput struct {
	Title string                  `json:"title" binding:"required"`
	Body  string                  `json:"body" binding:"required"`
	Type  models.NotificationType `json:"type"`
	Data  map[string]string       `json:"data"`
}

// BroadcastResult counts what a broadcast reached
type BroadcastResult struct {
	Recipients int `json:"recipients"`
	Pushed     int `json:"pushed"`
	InApp      int `json:"inApp"`
}

// BroadcastService sends promotions and system notices to every reachable user
type BroadcastService struct {
	users         UserStore
	push          *PushService
	notifications *NotificationService
	log           *logrus.Logger
}

// NewBroadcastService creates a new broadcast service
func NewBroadcastService(users UserStore, push *PushService, notifications *NotificationService, log *logrus.Logger) *BroadcastService {
	return &BroadcastService{users: users, push: push, notifications: notifications, log: log}
}

// Send pushes the message and stores an in-app copy for each recipient.
// Promotions only reach users who opted in.
func (s *BroadcastService) Send(ctx context.Context, in BroadcastInput) (*BroadcastResult, error) {
	if in.Type == "" {
		in.Type = models.NotificationTypeSystem
	}
	if in.Type != models.NotificationTypePromotion && in.Type != models.NotificationTypeSystem {
		return nil, NewValidationError("broadcast type must be promotion or system")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Body) == "" {
		return nil, NewValidationError("title and body are required")
	}
	promotional := in.Type == models.NotificationTypePromotion

	msg := models.PushMessage{Title: in.Title, Body: in.Body, Data: in.Data}
	pushed, err := s.push.Broadcast(ctx, msg, promotional)
	if err != nil {
		return nil, err
	}

	users, err := s.users.FindPushable(ctx)
	if err != nil {
		return nil, err
	}
	data := make(map[string]interface{}, len(in.Data))
	for k, v := range in.Data {
		data[k] = v
	}

	result := &BroadcastResult{Pushed: pushed}
	for _, u := range users {
		if promotional && !u.NotificationPreferences.Promotions {
			continue
		}
		result.Recipients++
		_, err := s.notifications.Create(ctx, CreateNotificationInput{
			RecipientType: models.RecipientUser,
			UserID:        u.ID.Hex(),
			Title:         in.Title,
			Body:          in.Body,
			Type:          in.Type,
			Data:          data,
			Priority:      models.PriorityLow,
		})
		if err != nil {
			s.log.WithError(err).WithField("userId", u.ID.Hex()).Warn("failed to store broadcast notification")
			continue
		}
		result.InApp++
	}

	s.log.WithFields(logrus.Fields{
		"type":       in.Type,
		"recipients": result.Recipients,
		"pushed":     result.Pushed,
	}).Info("broadcast sent")
	return result, nil
}
