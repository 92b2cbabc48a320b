package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
	"storefront-backend/internal/testutil"
	"storefront-backend/internal/utils"
)

func sampleOrder() *models.Order {
	return &models.Order{
		ID:              primitive.NewObjectID(),
		OrderNumber:     "ORD-240101-007",
		OrderTrackingID: "trk-abc",
		OrderStatus:     models.OrderStatusPending,
		GuestUser:       &models.GuestUser{Email: "a@b.com", Name: "Ada <Buyer>"},
		ShippingAddress: models.Address{FirstName: "Ada", LastName: "Buyer", Address: "1 Market St", City: "Nairobi"},
		OrderItems:      []models.OrderItem{{Name: "Widget & Co", Quantity: 2, Price: 10}},
		TotalPrice:      20,
	}
}

func TestTemplateForStatus(t *testing.T) {
	tests := []struct {
		status models.OrderStatus
		want   string
	}{
		{models.OrderStatusPending, services.TemplateOrderPlaced},
		{models.OrderStatusProcessing, services.TemplateOrderConfirmed},
		{models.OrderStatusShipped, services.TemplateOrderShipped},
		{models.OrderStatusDelivered, services.TemplateOrderDelivered},
		{models.OrderStatusCancelled, services.TemplateOrderCancelled},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, services.TemplateForStatus(tt.status))
		})
	}
}

func TestEmailService_RenderOrderEmail(t *testing.T) {
	mailer := &testutil.Mailer{}
	email := services.NewEmailService(mailer, "https://shop.test/", "https://admin.shop.test", "ops@shop.test", utils.NewTestLogger())
	order := sampleOrder()

	t.Run("CustomerTemplate", func(t *testing.T) {
		msg := email.RenderOrderEmail(order, services.TemplateOrderShipped)
		assert.Equal(t, "Your order ORD-240101-007 has shipped", msg.Subject)
		assert.Contains(t, msg.Body, "https://shop.test/track-order/trk-abc")
		assert.Contains(t, msg.Body, "Widget &amp; Co")
		assert.Contains(t, msg.Body, "$20.00")
	})

	t.Run("UnknownKeyFallsBackToPlaced", func(t *testing.T) {
		msg := email.RenderOrderEmail(order, "no_such_template")
		assert.Equal(t, "Order Confirmation - ORD-240101-007", msg.Subject)
	})

	t.Run("AdminAlertLinksToPanel", func(t *testing.T) {
		msg := email.RenderOrderEmail(order, services.TemplateAdminOrderAlert)
		assert.Equal(t, "New order received - ORD-240101-007", msg.Subject)
		assert.Contains(t, msg.Body, "https://admin.shop.test/orders/"+order.ID.Hex())
		assert.Contains(t, msg.Body, "Ada &lt;Buyer&gt;")
		assert.NotContains(t, msg.Body, "track-order")
	})

	t.Run("SendRequiresRecipient", func(t *testing.T) {
		_, err := email.SendOrderEmail(context.Background(), "", order, services.TemplateOrderPlaced)
		require.Error(t, err)
		assert.Empty(t, mailer.Sent())

		msg, err := email.SendOrderEmail(context.Background(), "a@b.com", order, services.TemplateOrderPlaced)
		require.NoError(t, err)
		sent := mailer.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, msg.Subject, sent[0].Subject)
	})
}

func TestEmailService_SimulatedDelivery(t *testing.T) {
	ctx := context.Background()
	log := utils.NewTestLogger()

	unconfigured := services.NewSMTPMailer("", 0, "", "", log)
	assert.False(t, unconfigured.Configured())
	assert.ErrorIs(t, unconfigured.Send(ctx, "a@b.com", "Hi", "<p>Hi</p>"), services.ErrEmailSimulated)

	mailer := &testutil.Mailer{Simulate: true}
	email := services.NewEmailService(mailer, "https://shop.test", "https://admin.shop.test", "ops@shop.test", log)

	msg, err := email.SendOrderEmail(ctx, "a@b.com", sampleOrder(), services.TemplateOrderPlaced)
	require.NoError(t, err)
	assert.True(t, msg.Simulated)
	assert.Empty(t, mailer.Sent())

	assert.NoError(t, email.SendPasswordResetEmail(ctx, "a@b.com", "Ada", "raw-token"))
	assert.NoError(t, email.SendVerificationEmail(ctx, "a@b.com", "Ada", "raw-token"))
}
