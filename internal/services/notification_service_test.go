package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
	"storefront-backend/internal/utils"
)

var guestInbox = models.Recipient{Type: models.RecipientGuest, GuestEmail: "a@b.com"}

func guestNotice(title string) services.CreateNotificationInput {
	return services.CreateNotificationInput{
		RecipientType: models.RecipientGuest,
		GuestEmail:    "A@B.com",
		Title:         title,
		Body:          "Your order is on its way.",
		Type:          models.NotificationTypeOrderUpdate,
	}
}

func TestNotificationService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	t.Run("DefaultsAndPublishes", func(t *testing.T) {
		n, err := f.notificationSvc.Create(ctx, guestNotice("Order placed"))
		require.NoError(t, err)
		assert.False(t, n.ID.IsZero())
		assert.Equal(t, "a@b.com", n.GuestEmail)
		assert.Nil(t, n.UserID)
		assert.False(t, n.Read)
		assert.False(t, n.Clicked)
		assert.Equal(t, models.PriorityNormal, n.Priority)
		assert.WithinDuration(t, time.Now().Add(models.NotificationTTL), n.ExpiresAt, time.Minute)

		published := f.publisher.Published()
		require.Len(t, published, 1)
		assert.Equal(t, n.ID, published[0].ID)
	})

	userID := primitive.NewObjectID().Hex()
	invalid := []struct {
		name string
		in   services.CreateNotificationInput
	}{
		{"UnknownRecipientType", services.CreateNotificationInput{RecipientType: "seller", Title: "t", Body: "b", Type: models.NotificationTypeSystem}},
		{"UnknownType", services.CreateNotificationInput{RecipientType: models.RecipientAdmin, Title: "t", Body: "b", Type: "sms"}},
		{"MissingTitle", services.CreateNotificationInput{RecipientType: models.RecipientAdmin, Body: "b", Type: models.NotificationTypeSystem}},
		{"UserWithoutID", services.CreateNotificationInput{RecipientType: models.RecipientUser, Title: "t", Body: "b", Type: models.NotificationTypeSystem}},
		{"UserWithGuestEmail", services.CreateNotificationInput{RecipientType: models.RecipientUser, UserID: userID, GuestEmail: "a@b.com", Title: "t", Body: "b", Type: models.NotificationTypeSystem}},
		{"GuestWithUserID", services.CreateNotificationInput{RecipientType: models.RecipientGuest, UserID: userID, GuestEmail: "a@b.com", Title: "t", Body: "b", Type: models.NotificationTypeSystem}},
		{"GuestWithoutEmail", services.CreateNotificationInput{RecipientType: models.RecipientGuest, Title: "t", Body: "b", Type: models.NotificationTypeSystem}},
		{"AdminWithGuestEmail", services.CreateNotificationInput{RecipientType: models.RecipientAdmin, GuestEmail: "a@b.com", Title: "t", Body: "b", Type: models.NotificationTypeSystem}},
		{"UnknownPriority", services.CreateNotificationInput{RecipientType: models.RecipientAdmin, Title: "t", Body: "b", Type: models.NotificationTypeSystem, Priority: "urgent"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.notificationSvc.Create(ctx, tt.in)
			assertStatus(t, err, http.StatusBadRequest)
		})
	}
	assert.Len(t, f.publisher.Published(), 1)
}

func TestNotificationService_ReadState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	n, err := f.notificationSvc.Create(ctx, guestNotice("first"))
	require.NoError(t, err)
	_, err = f.notificationSvc.Create(ctx, guestNotice("second"))
	require.NoError(t, err)

	t.Run("MarkAsReadIsIdempotent", func(t *testing.T) {
		first, err := f.notificationSvc.MarkAsRead(ctx, guestInbox, n.ID.Hex())
		require.NoError(t, err)
		assert.True(t, first.Read)
		require.NotNil(t, first.ReadAt)

		second, err := f.notificationSvc.MarkAsRead(ctx, guestInbox, n.ID.Hex())
		require.NoError(t, err)
		assert.True(t, second.Read)
		assert.Equal(t, *first.ReadAt, *second.ReadAt)

		count, err := f.notificationSvc.UnreadCount(ctx, guestInbox)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("OtherInboxesCannotTouchIt", func(t *testing.T) {
		other := models.Recipient{Type: models.RecipientGuest, GuestEmail: "c@d.com"}
		_, err := f.notificationSvc.MarkAsRead(ctx, other, n.ID.Hex())
		assertStatus(t, err, http.StatusNotFound)
		assertStatus(t, f.notificationSvc.Delete(ctx, other, n.ID.Hex()), http.StatusNotFound)
	})

	t.Run("ClickImpliesRead", func(t *testing.T) {
		fresh, err := f.notificationSvc.Create(ctx, guestNotice("third"))
		require.NoError(t, err)
		clicked, err := f.notificationSvc.MarkClicked(ctx, guestInbox, fresh.ID.Hex())
		require.NoError(t, err)
		assert.True(t, clicked.Clicked)
		assert.True(t, clicked.Read)
	})

	t.Run("MarkAllAsRead", func(t *testing.T) {
		updated, err := f.notificationSvc.MarkAllAsRead(ctx, guestInbox)
		require.NoError(t, err)
		assert.EqualValues(t, 1, updated)

		count, err := f.notificationSvc.UnreadCount(ctx, guestInbox)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, f.notificationSvc.Delete(ctx, guestInbox, n.ID.Hex()))
		_, err := f.notificationSvc.MarkAsRead(ctx, guestInbox, n.ID.Hex())
		assertStatus(t, err, http.StatusNotFound)
	})
}

func TestNotificationService_ExpiredAreHidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	past := time.Now().Add(-time.Hour)
	expiredIn := guestNotice("expired")
	expiredIn.ExpiresAt = &past
	expired, err := f.notificationSvc.Create(ctx, expiredIn)
	require.NoError(t, err)
	_, err = f.notificationSvc.Create(ctx, guestNotice("live"))
	require.NoError(t, err)

	count, err := f.notificationSvc.UnreadCount(ctx, guestInbox)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	page, err := f.notificationSvc.List(ctx, guestInbox, services.ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "live", page.Items[0].Title)
	assert.EqualValues(t, 1, page.Total)

	_, err = f.notificationSvc.MarkAsRead(ctx, guestInbox, expired.ID.Hex())
	assertStatus(t, err, http.StatusNotFound)
	assert.Len(t, f.notifications.All(), 2)
}

func TestNotificationService_ListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	for i := 0; i < 5; i++ {
		_, err := f.notificationSvc.Create(ctx, guestNotice("order"))
		require.NoError(t, err)
	}
	promo := guestNotice("sale")
	promo.Type = models.NotificationTypePromotion
	_, err := f.notificationSvc.Create(ctx, promo)
	require.NoError(t, err)

	page, err := f.notificationSvc.List(ctx, guestInbox, services.ListNotificationsInput{Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 6, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	page, err = f.notificationSvc.List(ctx, guestInbox, services.ListNotificationsInput{Type: models.NotificationTypePromotion})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "sale", page.Items[0].Title)

	unread := false
	page, err = f.notificationSvc.List(ctx, guestInbox, services.ListNotificationsInput{Read: &unread, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	assert.Len(t, page.Items, 6)

	_, err = f.notificationSvc.List(ctx, guestInbox, services.ListNotificationsInput{Type: "fax"})
	assertStatus(t, err, http.StatusBadRequest)
}

func TestNotificationHub_StreamsToMatchingInbox(t *testing.T) {
	ctx := context.Background()
	hub := services.NewNotificationHub(nil, utils.NewTestLogger())
	f := newFixture(false)
	notifications := services.NewNotificationService(f.notifications, hub, utils.NewTestLogger())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, guestInbox)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connected", msg.Type)
	assert.Equal(t, 1, hub.ConnectionCount())

	other := guestNotice("not yours")
	other.GuestEmail = "c@d.com"
	_, err = notifications.Create(ctx, other)
	require.NoError(t, err)
	_, err = notifications.Create(ctx, guestNotice("yours"))
	require.NoError(t, err)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, "yours", msg.Data["title"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	msg.Data = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestNotificationHub_TargetedAdminNotifications(t *testing.T) {
	ctx := context.Background()
	hub := services.NewNotificationHub(nil, utils.NewTestLogger())
	f := newFixture(false)
	notifications := services.NewNotificationService(f.notifications, hub, utils.NewTestLogger())

	alice := primitive.NewObjectID().Hex()
	bob := primitive.NewObjectID().Hex()

	dial := func(adminID string) *websocket.Conn {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = hub.Serve(w, r, models.Recipient{Type: models.RecipientAdmin, UserID: adminID})
		}))
		t.Cleanup(srv.Close)

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		return conn
	}

	type message struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	next := func(conn *websocket.Conn) message {
		var msg message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	aliceConn := dial(alice)
	bobConn := dial(bob)
	assert.Equal(t, "connected", next(aliceConn).Type)
	assert.Equal(t, "connected", next(bobConn).Type)
	assert.Equal(t, 2, hub.ConnectionCount())

	_, err := notifications.Create(ctx, services.CreateNotificationInput{
		RecipientType: models.RecipientAdmin,
		UserID:        alice,
		Title:         "for alice",
		Body:          "Assigned to you.",
		Type:          models.NotificationTypeSystem,
	})
	require.NoError(t, err)
	_, err = notifications.Create(ctx, services.CreateNotificationInput{
		RecipientType: models.RecipientAdmin,
		Title:         "for everyone",
		Body:          "New order.",
		Type:          models.NotificationTypeOrderUpdate,
	})
	require.NoError(t, err)

	assert.Equal(t, "for alice", next(aliceConn).Data["title"])
	assert.Equal(t, "for everyone", next(aliceConn).Data["title"])
	assert.Equal(t, "for everyone", next(bobConn).Data["title"])
}
