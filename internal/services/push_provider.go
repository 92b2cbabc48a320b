package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2/google"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"storefront-backend/internal/models"
)

// ErrPushTokenInvalid means the provider rejected the device token for good.
var ErrPushTokenInvalid = errors.New("push token is no longer registered")

// PushProvider delivers one push message to one device token.
type PushProvider interface {
	Send(ctx context.Context, token string, msg models.PushMessage) error
}

// FCMProvider sends through the Firebase Cloud Messaging HTTP v1 API
type FCMProvider struct {
	svc     *fcm.Service
	parent  string
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewFCMProvider builds a provider from a service account. serviceAccount
// is either the JSON document itself or a path to it.
func NewFCMProvider(ctx context.Context, serviceAccount string, log *logrus.Logger) (*FCMProvider, error) {
	raw := []byte(serviceAccount)
	if !strings.HasPrefix(strings.TrimSpace(serviceAccount), "{") {
		data, err := os.ReadFile(serviceAccount)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account: %w", err)
		}
		raw = data
	}

	creds, err := google.CredentialsFromJSON(ctx, raw, fcm.FirebaseMessagingScope)
	if err != nil {
		return nil, fmt.Errorf("invalid service account: %w", err)
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("service account has no project_id")
	}

	svc, err := fcm.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create FCM client: %w", err)
	}

	return &FCMProvider{
		svc:     svc,
		parent:  "projects/" + creds.ProjectID,
		breaker: newBreaker("fcm", log),
		log:     log,
	}, nil
}

// Send delivers msg to token.
func (p *FCMProvider) Send(ctx context.Context, token string, msg models.PushMessage) error {
	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token: token,
			Notification: &fcm.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
		},
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return p.svc.Projects.Messages.Send(p.parent, req).Context(ctx).Do()
	})
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && tokenUnregistered(gerr) {
			return fmt.Errorf("%w: %v", ErrPushTokenInvalid, gerr.Message)
		}
		return fmt.Errorf("fcm send failed: %w", err)
	}
	return nil
}

// tokenUnregistered reports whether FCM rejected the device token itself.
// Other 400s are payload errors and leave the token alone.
func tokenUnregistered(gerr *googleapi.Error) bool {
	if gerr.Code == http.StatusNotFound {
		return true
	}
	for _, detail := range gerr.Details {
		if d, ok := detail.(map[string]interface{}); ok && d["errorCode"] == "UNREGISTERED" {
			return true
		}
	}
	return false
}

// LogPushProvider stands in when no push credentials are configured.
type LogPushProvider struct {
	log *logrus.Logger
}

// NewLogPushProvider creates a provider that only logs.
func NewLogPushProvider(log *logrus.Logger) *LogPushProvider {
	return &LogPushProvider{log: log}
}

// Send logs the message it would have delivered.
func (p *LogPushProvider) Send(_ context.Context, token string, msg models.PushMessage) error {
	p.log.WithFields(logrus.Fields{
		"token": maskPassword(token),
		"title": msg.Title,
	}).Info("push simulated (provider not configured)")
	return nil
}
