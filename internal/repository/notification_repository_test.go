package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
)

func TestInboxFilter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	userID := primitive.NewObjectID()

	t.Run("Guest", func(t *testing.T) {
		filter, ok := inboxFilter(models.Recipient{Type: models.RecipientGuest, GuestEmail: "a@b.com"}, now)
		require.True(t, ok)
		assert.Equal(t, "a@b.com", filter["guestEmail"])
		assert.Equal(t, models.RecipientGuest, filter["recipientType"])
		assert.Equal(t, bson.M{"$gt": now}, filter["expiresAt"])
	})

	t.Run("User", func(t *testing.T) {
		filter, ok := inboxFilter(models.Recipient{Type: models.RecipientUser, UserID: userID.Hex()}, now)
		require.True(t, ok)
		assert.Equal(t, userID, filter["userId"])
	})

	t.Run("AdminSeesBroadcastsAndOwn", func(t *testing.T) {
		filter, ok := inboxFilter(models.Recipient{Type: models.RecipientAdmin, UserID: userID.Hex()}, now)
		require.True(t, ok)
		assert.Equal(t, bson.A{bson.M{"userId": nil}, bson.M{"userId": userID}}, filter["$or"])

		filter, ok = inboxFilter(models.Recipient{Type: models.RecipientAdmin}, now)
		require.True(t, ok)
		assert.Nil(t, filter["userId"])
		assert.Contains(t, filter, "userId")
	})

	t.Run("Unscoped", func(t *testing.T) {
		_, ok := inboxFilter(models.Recipient{Type: models.RecipientGuest}, now)
		assert.False(t, ok)
		_, ok = inboxFilter(models.Recipient{Type: models.RecipientUser, UserID: "nope"}, now)
		assert.False(t, ok)
		_, ok = inboxFilter(models.Recipient{Type: "seller"}, now)
		assert.False(t, ok)
	})
}
