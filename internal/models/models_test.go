package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newGuestOrder() *Order {
	return &Order{
		CustomerType: CustomerTypeGuest,
		ShippingAddress: Address{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     " Ada@Example.com ",
			Phone:     "555-0100",
		},
		OrderItems:    []OrderItem{{Product: "p1", Name: "Widget", Quantity: 2, Price: 10}},
		TotalPrice:    20,
		OrderStatus:   OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
	}
}

func TestOrderNormalizeAndValidate(t *testing.T) {
	t.Run("GuestEmailTakenFromShippingAddress", func(t *testing.T) {
		o := newGuestOrder()
		o.GuestUser = &GuestUser{Email: "someone-else@example.com"}
		o.Normalize()

		require.NoError(t, o.Validate())
		assert.Equal(t, "ada@example.com", o.GuestUser.Email)
		assert.Equal(t, o.ShippingAddress.Email, o.GuestUser.Email)
		assert.Equal(t, "ada@example.com", o.OrderReference)
		assert.Equal(t, "Ada Lovelace", o.GuestUser.Name)
		assert.Equal(t, "555-0100", o.GuestUser.Phone)
	})

	t.Run("GuestEmailMismatchRejected", func(t *testing.T) {
		o := newGuestOrder()
		o.Normalize()
		o.GuestUser.Email = "other@example.com"
		assert.Error(t, o.Validate())
	})

	t.Run("GuestReferenceMustBeEmail", func(t *testing.T) {
		o := newGuestOrder()
		o.ShippingAddress.Email = "not-an-email"
		o.Normalize()
		assert.Error(t, o.Validate())
	})

	t.Run("RegisteredRequiresObjectIDReference", func(t *testing.T) {
		uid := primitive.NewObjectID()
		o := newGuestOrder()
		o.CustomerType = CustomerTypeRegistered
		o.User = &uid
		o.OrderReference = uid.Hex()
		o.Normalize()
		require.NoError(t, o.Validate())
		assert.Nil(t, o.GuestUser)

		o.OrderReference = "ada@example.com"
		assert.Error(t, o.Validate())
	})

	t.Run("RejectsEmptyItemsAndBadTotals", func(t *testing.T) {
		o := newGuestOrder()
		o.OrderItems = nil
		o.Normalize()
		assert.Error(t, o.Validate())

		o = newGuestOrder()
		o.TotalPrice = 0
		o.Normalize()
		assert.Error(t, o.Validate())
	})

	t.Run("RejectsUnknownStatus", func(t *testing.T) {
		o := newGuestOrder()
		o.OrderStatus = "Lost"
		o.Normalize()
		assert.Error(t, o.Validate())
	})
}

func TestApplyStatusUpdate(t *testing.T) {
	o := newGuestOrder()
	o.Timeline = []TimelineEntry{{Status: OrderStatusPending}}
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	o.ApplyStatusUpdate(StatusUpdate{Status: OrderStatusShipped, TrackingNumber: "TRK1", Carrier: "UPS", UpdatedBy: "admin", At: at})

	assert.Equal(t, OrderStatusShipped, o.OrderStatus)
	assert.Equal(t, "TRK1", o.TrackingNumber)
	assert.Equal(t, "TRK1", o.Shipping.TrackingNumber)
	require.Len(t, o.Timeline, 2)
	assert.Equal(t, OrderStatusShipped, o.Timeline[1].Status)
	assert.Equal(t, "admin", o.Timeline[1].UpdatedBy)
	require.Len(t, o.Shipping.TrackingHistory, 1)
	assert.Equal(t, "Shipped", o.Shipping.TrackingHistory[0].Status)
	assert.Equal(t, at, o.UpdatedAt)

	o.ApplyStatusUpdate(StatusUpdate{Status: OrderStatusDelivered, At: at})
	assert.Len(t, o.Timeline, 3)
	assert.Len(t, o.Shipping.TrackingHistory, 1, "no tracking number means no history entry")
	assert.Equal(t, PaymentStatusPending, o.PaymentStatus)
}

func TestCustomerEmailPriority(t *testing.T) {
	o := newGuestOrder()
	o.Normalize()
	assert.Equal(t, "registered@example.com", o.CustomerEmail("registered@example.com"))
	assert.Equal(t, "ada@example.com", o.CustomerEmail(""))

	o.GuestUser = nil
	o.ShippingAddress.Email = "ship@example.com"
	assert.Equal(t, "ship@example.com", o.CustomerEmail(""))
}

func TestFormatOrderNumber(t *testing.T) {
	day := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "ORD-260109-007", FormatOrderNumber(day, 7))
	assert.True(t, OrderNumberPattern.MatchString(FormatOrderNumber(day, 42)))
	assert.Equal(t, "order-260109", OrderSequenceKey(day))
}

func TestSessionEviction(t *testing.T) {
	var list []SessionToken
	for i := 0; i < 7; i++ {
		list = AppendSession(list, SessionToken{Token: fmt.Sprintf("t%d", i)}, MaxSessions)
	}
	require.Len(t, list, MaxSessions)
	assert.Equal(t, "t2", list[0].Token, "oldest tokens are evicted first")
	assert.Equal(t, "t6", list[4].Token)

	list = RemoveSession(list, "t4")
	assert.Len(t, list, 4)
	u := &User{Tokens: list}
	assert.False(t, u.HasSession("t4"))
	assert.True(t, u.HasSession("t5"))
}

func TestRefreshSessionExpiry(t *testing.T) {
	now := time.Now()
	u := &User{RefreshTokens: []SessionToken{
		{Token: "live", ExpiresAt: now.Add(time.Hour)},
		{Token: "dead", ExpiresAt: now.Add(-time.Hour)},
	}}
	assert.True(t, u.HasRefreshSession("live", now))
	assert.False(t, u.HasRefreshSession("dead", now))
	assert.False(t, u.HasRefreshSession("missing", now))
}

func TestDiscountedPrice(t *testing.T) {
	tests := []struct {
		actual, discount, want float64
	}{
		{100, 0, 100},
		{100, 25, 75},
		{19.99, 10, 17.99},
		{0.1, 50, 0.05},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DiscountedPrice(tt.actual, tt.discount), "%v @ %v%%", tt.actual, tt.discount)
	}

	p := &Product{ActualPrice: 50, Discount: 120}
	assert.Error(t, p.ApplyPricing())
	p.Discount = 20
	require.NoError(t, p.ApplyPricing())
	assert.Equal(t, 40.0, p.DiscountedPrice)
}

func TestRecipientMatches(t *testing.T) {
	uid := primitive.NewObjectID()
	userNote := &Notification{RecipientType: RecipientUser, UserID: &uid}
	guestNote := &Notification{RecipientType: RecipientGuest, GuestEmail: "a@b.com"}
	adminNote := &Notification{RecipientType: RecipientAdmin}

	assert.True(t, Recipient{Type: RecipientUser, UserID: uid.Hex()}.Matches(userNote))
	assert.False(t, Recipient{Type: RecipientUser, UserID: primitive.NewObjectID().Hex()}.Matches(userNote))
	assert.True(t, Recipient{Type: RecipientGuest, GuestEmail: "a@b.com"}.Matches(guestNote))
	assert.False(t, Recipient{Type: RecipientGuest, GuestEmail: "a@b.com"}.Matches(userNote))
	assert.True(t, Recipient{Type: RecipientAdmin, UserID: uid.Hex()}.Matches(adminNote))
}

func TestIdentityRecipient(t *testing.T) {
	r, ok := (&Identity{Kind: IdentityRegistered, UserID: "u1", Role: UserRoleCustomer}).Recipient()
	require.True(t, ok)
	assert.Equal(t, RecipientUser, r.Type)

	r, ok = (&Identity{Kind: IdentityRegistered, UserID: "u2", Role: UserRoleGuest, Email: "g@x.com"}).Recipient()
	require.True(t, ok)
	assert.Equal(t, RecipientGuest, r.Type)
	assert.Equal(t, "g@x.com", r.GuestEmail)

	r, ok = (&Identity{Kind: IdentityAdmin, UserID: "a1"}).Recipient()
	require.True(t, ok)
	assert.Equal(t, Recipient{Type: RecipientAdmin, UserID: "a1"}, r)

	r, ok = (&Identity{Kind: IdentityRegistered, UserID: "u3", Role: UserRoleAdmin}).Recipient()
	require.True(t, ok)
	assert.Equal(t, Recipient{Type: RecipientAdmin, UserID: "u3"}, r)

	_, ok = (&Identity{Kind: IdentityGuest}).Recipient()
	assert.False(t, ok)

	var nilIdentity *Identity
	assert.False(t, nilIdentity.IsAdmin())
}
