package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"storefront-backend/internal/models"
)

// PushTarget names a recipient by explicit token, user id or guest email,
// tried in that order.
type PushTarget struct {
	Token      string
	UserID     string
	GuestEmail string
}

// PushService resolves push tokens and hands messages to the provider
type PushService struct {
	provider PushProvider
	users    UserStore
	admins   AdminStore
	log      *logrus.Logger
}

// NewPushService creates a new push service
func NewPushService(provider PushProvider, users UserStore, admins AdminStore, log *logrus.Logger) *PushService {
	return &PushService{provider: provider, users: users, admins: admins, log: log}
}

// NotifyUser sends msg to one recipient. A recipient without a usable
// token is logged and skipped; provider errors are returned.
func (s *PushService) NotifyUser(ctx context.Context, target PushTarget, msg models.PushMessage) error {
	token := target.Token
	var user *models.User

	if token == "" {
		var err error
		switch {
		case target.UserID != "":
			user, err = s.users.FindByID(ctx, target.UserID)
		case target.GuestEmail != "":
			user, err = s.users.FindByEmail(ctx, target.GuestEmail)
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if user != nil && user.WantsPush() {
			token = user.PushToken
		}
	}

	if token == "" {
		s.log.WithFields(logrus.Fields{
			"userId":     target.UserID,
			"guestEmail": target.GuestEmail,
		}).Debug("no push token for recipient, skipping push")
		return nil
	}

	err := s.provider.Send(ctx, token, msg)
	if errors.Is(err, ErrPushTokenInvalid) && user != nil {
		user.PushToken = ""
		if saveErr := s.users.Save(ctx, user); saveErr != nil {
			s.log.WithError(saveErr).Warn("failed to clear stale push token")
		}
	}
	return err
}

// NotifyAdmins sends msg to every admin device: admin accounts with a
// push token and admin-role users with push enabled. It returns the
// number of successful sends and the joined provider errors.
func (s *PushService) NotifyAdmins(ctx context.Context, msg models.PushMessage) (int, error) {
	tokens := map[string]struct{}{}

	admins, err := s.admins.FindWithPushToken(ctx)
	if err != nil {
		return 0, err
	}
	for _, a := range admins {
		tokens[a.PushToken] = struct{}{}
	}

	users, err := s.users.FindPushableAdmins(ctx)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		tokens[u.PushToken] = struct{}{}
	}

	if len(tokens) == 0 {
		s.log.Debug("no admin push tokens registered, skipping push")
		return 0, nil
	}

	sent := 0
	var errs []error
	for token := range tokens {
		if err := s.provider.Send(ctx, token, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// Broadcast sends msg to every user with push enabled and returns the
// number of successful sends. Individual failures are logged.
func (s *PushService) Broadcast(ctx context.Context, msg models.PushMessage, promotional bool) (int, error) {
	users, err := s.users.FindPushable(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, u := range users {
		if promotional && !u.NotificationPreferences.Promotions {
			continue
		}
		if err := s.provider.Send(ctx, u.PushToken, msg); err != nil {
			s.log.WithError(err).WithField("userId", u.ID.Hex()).Warn("broadcast push failed")
			continue
		}
		sent++
	}
	return sent, nil
}
