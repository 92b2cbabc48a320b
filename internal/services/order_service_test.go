package services_test

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

var orderNumberFormat = regexp.MustCompile(`^ORD-\d{6}-\d{3}$`)

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := services.AsAppError(err)
	require.True(t, ok, "expected *AppError, got %T: %v", err, err)
	assert.Equal(t, status, appErr.Status)
}

func TestPlaceOrder_Guest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	result, err := f.orderSvc.PlaceOrder(ctx, widgetOrder(" A@B.com "), nil)
	require.NoError(t, err)
	order := result.Order

	t.Run("PersistsGuestIdentity", func(t *testing.T) {
		assert.Equal(t, models.CustomerTypeGuest, order.CustomerType)
		require.NotNil(t, order.GuestUser)
		assert.Equal(t, "a@b.com", order.GuestUser.Email)
		assert.Equal(t, order.ShippingAddress.Email, order.GuestUser.Email)
		assert.Equal(t, "a@b.com", order.OrderReference)
		assert.Equal(t, "a@b.com", order.BillingAddress.Email)
		assert.Nil(t, order.User)

		stored, err := f.orders.FindByID(ctx, order.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, order.OrderNumber, stored.OrderNumber)
	})

	t.Run("AssignsIdentifiers", func(t *testing.T) {
		_, err := uuid.Parse(order.OrderTrackingID)
		assert.NoError(t, err)
		assert.Regexp(t, orderNumberFormat, order.OrderNumber)
		assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
		assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
		require.Len(t, order.Timeline, 1)
		assert.Equal(t, models.OrderStatusPending, order.Timeline[0].Status)

		second, err := f.orderSvc.PlaceOrder(ctx, widgetOrder("a@b.com"), nil)
		require.NoError(t, err)
		assert.NotEqual(t, order.OrderTrackingID, second.Order.OrderTrackingID)
		assert.NotEqual(t, order.OrderNumber, second.Order.OrderNumber)
	})

	t.Run("NotifiesCustomerAndAdmins", func(t *testing.T) {
		assert.Empty(t, result.Dispatch.Failed())

		sent := f.mailer.Sent()
		require.GreaterOrEqual(t, len(sent), 2)
		assert.Equal(t, "a@b.com", sent[0].To)
		assert.Equal(t, "Order Confirmation - "+order.OrderNumber, sent[0].Subject)
		assert.Equal(t, testAdminEmail, sent[1].To)
		assert.Contains(t, sent[1].Body, "https://admin.shop.test/orders/"+order.ID.Hex())

		guestInbox := models.Recipient{Type: models.RecipientGuest, GuestEmail: "a@b.com"}
		count, err := f.notificationSvc.UnreadCount(ctx, guestInbox)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count, "one notification per guest order")

		adminCount, err := f.notificationSvc.UnreadCount(ctx, models.Recipient{Type: models.RecipientAdmin})
		require.NoError(t, err)
		assert.EqualValues(t, 2, adminCount)

		stored, err := f.orders.FindByID(ctx, order.ID.Hex())
		require.NoError(t, err)
		require.Len(t, stored.Communications, 1)
		assert.Equal(t, "sent", stored.Communications[0].Status)
		assert.Equal(t, services.TemplateOrderPlaced, stored.Communications[0].Template)
	})
}

func TestPlaceOrder_Registered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	user, identity := f.customer("member@shop.test", "device-1")

	in := widgetOrder("")
	result, err := f.orderSvc.PlaceOrder(ctx, in, identity)
	require.NoError(t, err)
	order := result.Order

	assert.Equal(t, models.CustomerTypeRegistered, order.CustomerType)
	assert.Equal(t, user.ID.Hex(), order.OrderReference)
	require.NotNil(t, order.User)
	assert.Equal(t, user.ID, *order.User)
	assert.Nil(t, order.GuestUser)
	assert.Equal(t, "member@shop.test", order.ShippingAddress.Email)

	sent := f.mailer.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, "member@shop.test", sent[0].To)

	pushes := f.push.Sent()
	require.Len(t, pushes, 1)
	assert.Equal(t, "device-1", pushes[0].Token)
	assert.Equal(t, order.OrderNumber, pushes[0].Message.Data["orderNumber"])

	page, err := f.notificationSvc.List(ctx, models.Recipient{Type: models.RecipientUser, UserID: user.ID.Hex()}, services.ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.NotificationTypeOrderUpdate, page.Items[0].Type)
	assert.Equal(t, order.OrderNumber, page.Items[0].Data["orderNumber"])

	orders, err := f.orderSvc.ListUserOrders(ctx, identity)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestPlaceOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	tests := []struct {
		name   string
		mutate func(in *services.PlaceOrderInput)
	}{
		{"NoItems", func(in *services.PlaceOrderInput) { in.OrderItems = nil }},
		{"ZeroTotal", func(in *services.PlaceOrderInput) { in.TotalPrice = 0 }},
		{"NoShippingAddress", func(in *services.PlaceOrderInput) { in.ShippingAddress = nil }},
		{"GuestWithoutEmail", func(in *services.PlaceOrderInput) { in.ShippingAddress.Email = "" }},
		{"GuestWithInvalidEmail", func(in *services.PlaceOrderInput) { in.ShippingAddress.Email = "not-an-email" }},
		{"ItemWithoutName", func(in *services.PlaceOrderInput) { in.OrderItems[0].Name = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := widgetOrder("a@b.com")
			tt.mutate(&in)
			_, err := f.orderSvc.PlaceOrder(ctx, in, nil)
			assertStatus(t, err, http.StatusBadRequest)
		})
	}
	assert.Zero(t, f.orders.Len())
	assert.Empty(t, f.mailer.Sent())
}

func TestPlaceOrder_ConcurrentOrdersGetDistinctNumbers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	const n = 20
	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := widgetOrder("a@b.com")
			in.OrderItems[0].Quantity = i + 1
			in.TotalPrice = float64(10 * (i + 1))
			res, err := f.orderSvc.PlaceOrder(ctx, in, nil)
			errs[i] = err
			if err == nil {
				numbers[i] = res.Order.OrderNumber
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Regexp(t, orderNumberFormat, numbers[i])
		assert.False(t, seen[numbers[i]], "duplicate order number %s", numbers[i])
		seen[numbers[i]] = true
	}
	assert.Equal(t, n, f.orders.Len())
}

func TestPlaceOrder_NotificationFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)
	f.mailer.SetFail(true)

	result, err := f.orderSvc.PlaceOrder(ctx, widgetOrder("a@b.com"), nil)
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, 1, f.orders.Len())

	failed := result.Dispatch.Failed()
	require.Len(t, failed, 2)
	for _, res := range failed {
		assert.Equal(t, services.ChannelEmail, res.Channel)
		assert.True(t, res.Queued)
	}
	assert.Equal(t, 2, f.retry.Len())

	inApp, ok := result.Dispatch.Result(services.TaskCustomerInApp)
	require.True(t, ok)
	assert.True(t, inApp.OK())

	stored, err := f.orders.FindByID(ctx, result.Order.ID.Hex())
	require.NoError(t, err)
	require.Len(t, stored.Communications, 1)
	assert.Equal(t, "failed", stored.Communications[0].Status)
	assert.NotEmpty(t, stored.Communications[0].Error)
}

func TestPlaceOrder_SimulatedEmailIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)
	f.mailer.Simulate = true

	result, err := f.orderSvc.PlaceOrder(ctx, widgetOrder("a@b.com"), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Dispatch.Failed())
	assert.Zero(t, f.retry.Len())

	stored, err := f.orders.FindByID(ctx, result.Order.ID.Hex())
	require.NoError(t, err)
	require.Len(t, stored.Communications, 1)
	assert.Equal(t, "simulated", stored.Communications[0].Status)
	assert.Empty(t, stored.Communications[0].Error)
}

func TestPlaceOrder_StoreFailureIsReturned(t *testing.T) {
	f := newFixture(false)
	f.orders.FailCreate = services.ErrDuplicate

	_, err := f.orderSvc.PlaceOrder(context.Background(), widgetOrder("a@b.com"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrDuplicate)
	assert.Empty(t, f.mailer.Sent())
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	placed, err := f.orderSvc.PlaceOrder(ctx, widgetOrder("a@b.com"), nil)
	require.NoError(t, err)
	before := len(placed.Order.Timeline)
	mailsBefore := len(f.mailer.Sent())

	t.Run("ShipsWithTrackingNumber", func(t *testing.T) {
		result, err := f.orderSvc.UpdateOrderStatus(ctx, placed.Order.ID.Hex(), services.StatusUpdateInput{
			Status:         models.OrderStatusShipped,
			TrackingNumber: "TRK1",
			Carrier:        "DHL",
		}, "admin@shop.test")
		require.NoError(t, err)

		order := result.Order
		assert.Equal(t, models.OrderStatusShipped, order.OrderStatus)
		assert.Equal(t, "TRK1", order.TrackingNumber)
		assert.Equal(t, "DHL", order.Shipping.Carrier)
		require.Len(t, order.Timeline, before+1)
		last := order.Timeline[len(order.Timeline)-1]
		assert.Equal(t, models.OrderStatusShipped, last.Status)
		assert.Equal(t, "admin@shop.test", last.UpdatedBy)
		require.Len(t, order.Shipping.TrackingHistory, 1)

		sent := f.mailer.Sent()
		require.Len(t, sent, mailsBefore+1)
		mail := sent[len(sent)-1]
		assert.Equal(t, "a@b.com", mail.To)
		assert.Equal(t, "Your order "+order.OrderNumber+" has shipped", mail.Subject)
		assert.Contains(t, mail.Body, "TRK1")

		page, err := f.notificationSvc.List(ctx,
			models.Recipient{Type: models.RecipientGuest, GuestEmail: "a@b.com"},
			services.ListNotificationsInput{Type: models.NotificationTypeShipping})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Contains(t, page.Items[0].Body, "TRK1")
	})

	t.Run("PaymentStatusIsOptional", func(t *testing.T) {
		result, err := f.orderSvc.UpdateOrderStatus(ctx, placed.Order.ID.Hex(), services.StatusUpdateInput{
			Status:        models.OrderStatusDelivered,
			PaymentStatus: models.PaymentStatusPaid,
		}, "admin@shop.test")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPaid, result.Order.PaymentStatus)
		assert.Equal(t, "TRK1", result.Order.TrackingNumber)
		assert.Len(t, result.Order.Timeline, before+2)
	})

	t.Run("RejectsUnknownStatus", func(t *testing.T) {
		_, err := f.orderSvc.UpdateOrderStatus(ctx, placed.Order.ID.Hex(), services.StatusUpdateInput{Status: "Lost"}, "admin")
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("RejectsMalformedID", func(t *testing.T) {
		_, err := f.orderSvc.UpdateOrderStatus(ctx, "nope", services.StatusUpdateInput{Status: models.OrderStatusShipped}, "admin")
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		_, err := f.orderSvc.UpdateOrderStatus(ctx, primitive.NewObjectID().Hex(), services.StatusUpdateInput{Status: models.OrderStatusShipped}, "admin")
		assertStatus(t, err, http.StatusNotFound)
	})
}

func TestGetOrder_Access(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	_, owner := f.customer("owner@shop.test", "")
	_, stranger := f.customer("stranger@shop.test", "")
	admin := &models.Identity{Kind: models.IdentityAdmin, UserID: primitive.NewObjectID().Hex(), Email: "admin@shop.test"}

	registered, err := f.orderSvc.PlaceOrder(ctx, widgetOrder(""), owner)
	require.NoError(t, err)
	guest, err := f.orderSvc.PlaceOrder(ctx, widgetOrder("a@b.com"), nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		orderID  string
		identity *models.Identity
		status   int
	}{
		{"OwnerSeesOwnOrder", registered.Order.ID.Hex(), owner, http.StatusOK},
		{"AdminSeesAnyOrder", registered.Order.ID.Hex(), admin, http.StatusOK},
		{"StrangerIsForbidden", registered.Order.ID.Hex(), stranger, http.StatusForbidden},
		{"AnonymousIsForbidden", registered.Order.ID.Hex(), nil, http.StatusForbidden},
		{"GuestOrderByID", guest.Order.ID.Hex(), nil, http.StatusOK},
		{"MalformedID", "123", owner, http.StatusBadRequest},
		{"Missing", primitive.NewObjectID().Hex(), admin, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := f.orderSvc.GetOrder(ctx, tt.orderID, tt.identity)
			if tt.status == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, tt.orderID, order.ID.Hex())
				return
			}
			assertStatus(t, err, tt.status)
		})
	}
}

func TestOrderLookups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	_, member := f.customer("member@shop.test", "")

	guest, err := f.orderSvc.PlaceOrder(ctx, widgetOrder("guest@shop.test"), nil)
	require.NoError(t, err)
	_, err = f.orderSvc.PlaceOrder(ctx, widgetOrder(""), member)
	require.NoError(t, err)

	t.Run("ByTrackingID", func(t *testing.T) {
		order, err := f.orderSvc.GetByTrackingID(ctx, guest.Order.OrderTrackingID)
		require.NoError(t, err)
		assert.Equal(t, guest.Order.ID, order.ID)

		_, err = f.orderSvc.GetByTrackingID(ctx, "not-a-uuid")
		assertStatus(t, err, http.StatusBadRequest)

		_, err = f.orderSvc.GetByTrackingID(ctx, uuid.NewString())
		assertStatus(t, err, http.StatusNotFound)
	})

	t.Run("GuestOrdersByEmail", func(t *testing.T) {
		orders, err := f.orderSvc.ListGuestOrders(ctx, "Guest@Shop.test")
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, guest.Order.ID, orders[0].ID)

		orders, err = f.orderSvc.ListGuestOrders(ctx, "member@shop.test")
		require.NoError(t, err)
		assert.Empty(t, orders)

		_, err = f.orderSvc.ListGuestOrders(ctx, "")
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("UserOrdersRequireSignIn", func(t *testing.T) {
		_, err := f.orderSvc.ListUserOrders(ctx, &models.Identity{Kind: models.IdentityGuest, Email: "guest@shop.test"})
		assertStatus(t, err, http.StatusForbidden)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, f.orderSvc.DeleteOrder(ctx, guest.Order.ID.Hex()))
		err := f.orderSvc.DeleteOrder(ctx, guest.Order.ID.Hex())
		assertStatus(t, err, http.StatusNotFound)
	})
}
