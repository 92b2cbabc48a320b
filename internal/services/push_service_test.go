package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
	"storefront-backend/internal/testutil"
	"storefront-backend/internal/utils"
)

type providerFunc func(ctx context.Context, token string, msg models.PushMessage) error

func (f providerFunc) Send(ctx context.Context, token string, msg models.PushMessage) error {
	return f(ctx, token, msg)
}

var hello = models.PushMessage{Title: "Hello", Body: "World"}

func TestPushService_NotifyUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	withToken, _ := f.customer("push@example.com", "tok-user")
	withoutToken, _ := f.customer("nopush@example.com", "")

	require.NoError(t, f.pushService.NotifyUser(ctx, services.PushTarget{UserID: withToken.ID.Hex()}, hello))
	require.NoError(t, f.pushService.NotifyUser(ctx, services.PushTarget{GuestEmail: "push@example.com"}, hello))
	require.NoError(t, f.pushService.NotifyUser(ctx, services.PushTarget{UserID: withoutToken.ID.Hex()}, hello))
	require.NoError(t, f.pushService.NotifyUser(ctx, services.PushTarget{GuestEmail: "stranger@example.com"}, hello))
	require.NoError(t, f.pushService.NotifyUser(ctx, services.PushTarget{Token: "explicit"}, hello))

	sent := f.push.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "tok-user", sent[0].Token)
	assert.Equal(t, "tok-user", sent[1].Token)
	assert.Equal(t, "explicit", sent[2].Token)

	f.push.FailTokens = map[string]bool{"tok-user": true}
	err := f.pushService.NotifyUser(ctx, services.PushTarget{UserID: withToken.ID.Hex()}, hello)
	assert.ErrorIs(t, err, testutil.ErrInjected)
}

func TestPushService_ClearsRejectedToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	user, _ := f.customer("stale@example.com", "tok-stale")

	rejecting := providerFunc(func(context.Context, string, models.PushMessage) error {
		return services.ErrPushTokenInvalid
	})
	svc := services.NewPushService(rejecting, f.users, f.admins, utils.NewTestLogger())

	err := svc.NotifyUser(ctx, services.PushTarget{UserID: user.ID.Hex()}, hello)
	assert.ErrorIs(t, err, services.ErrPushTokenInvalid)

	stored, err := f.users.FindByID(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, stored.PushToken)
}

func TestPushService_NotifyAdmins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	sent, err := f.pushService.NotifyAdmins(ctx, hello)
	require.NoError(t, err)
	assert.Zero(t, sent)

	f.admins.Put(&models.Admin{Email: "ops@shop.test", PushToken: "tok-admin"})
	f.admins.Put(&models.Admin{Email: "quiet@shop.test"})
	f.users.Put(&models.User{
		Email: "staff@shop.test", Role: models.UserRoleAdmin, PushToken: "tok-staff",
		NotificationPreferences: models.DefaultNotificationPreferences(),
	})
	f.users.Put(&models.User{
		Email: "muted@shop.test", Role: models.UserRoleAdmin, PushToken: "tok-muted",
		NotificationPreferences: models.NotificationPreferences{Push: false},
	})
	f.users.Put(&models.User{
		Email: "buyer@shop.test", Role: models.UserRoleCustomer, PushToken: "tok-buyer",
		NotificationPreferences: models.DefaultNotificationPreferences(),
	})

	sent, err = f.pushService.NotifyAdmins(ctx, hello)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	tokens := []string{}
	for _, p := range f.push.Sent() {
		tokens = append(tokens, p.Token)
	}
	assert.ElementsMatch(t, []string{"tok-admin", "tok-staff"}, tokens)

	f.push.FailTokens = map[string]bool{"tok-admin": true}
	sent, err = f.pushService.NotifyAdmins(ctx, hello)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, 1, sent)
}

func TestBroadcastService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	broadcast := services.NewBroadcastService(f.users, f.pushService, f.notificationSvc, utils.NewTestLogger())

	optedIn := f.users.Put(&models.User{
		Email: "deals@example.com", Role: models.UserRoleCustomer, PushToken: "tok-deals",
		NotificationPreferences: models.NotificationPreferences{Push: true, Promotions: true},
	})
	f.users.Put(&models.User{
		Email: "plain@example.com", Role: models.UserRoleCustomer, PushToken: "tok-plain",
		NotificationPreferences: models.DefaultNotificationPreferences(),
	})
	f.users.Put(&models.User{Email: "silent@example.com", Role: models.UserRoleCustomer})

	t.Run("System", func(t *testing.T) {
		result, err := broadcast.Send(ctx, services.BroadcastInput{Title: "Maintenance", Body: "Tonight at 2am"})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Recipients)
		assert.Equal(t, 2, result.Pushed)
		assert.Equal(t, 2, result.InApp)
	})

	t.Run("PromotionReachesOptedInOnly", func(t *testing.T) {
		result, err := broadcast.Send(ctx, services.BroadcastInput{
			Title: "Sale", Body: "50% off", Type: models.NotificationTypePromotion,
			Data: map[string]string{"url": "/sale"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Recipients)
		assert.Equal(t, 1, result.Pushed)

		page, err := f.notificationSvc.List(ctx,
			models.Recipient{Type: models.RecipientUser, UserID: optedIn.ID.Hex()},
			services.ListNotificationsInput{Type: models.NotificationTypePromotion})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "/sale", page.Items[0].Data["url"])
		assert.Equal(t, models.PriorityLow, page.Items[0].Priority)
	})

	t.Run("RejectsOrderTypes", func(t *testing.T) {
		_, err := broadcast.Send(ctx, services.BroadcastInput{Title: "x", Body: "y", Type: models.NotificationTypeOrderUpdate})
		assertStatus(t, err, http.StatusBadRequest)
	})
}
