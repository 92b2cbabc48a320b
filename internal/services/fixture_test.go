package services_test

import (
	"time"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
	"storefront-backend/internal/testutil"
	"storefront-backend/internal/utils"
)

const testAdminEmail = "orders@shop.test"

type fixture struct {
	orders        *testutil.OrderStore
	users         *testutil.UserStore
	admins        *testutil.AdminStore
	notifications *testutil.NotificationStore
	mailer        *testutil.Mailer
	push          *testutil.Push
	publisher     *testutil.Publisher
	retry         *testutil.RetryQueue

	auth            *services.AuthService
	email           *services.EmailService
	pushService     *services.PushService
	notificationSvc *services.NotificationService
	orderSvc        *services.OrderService
	userSvc         *services.UserService
}

// newFixture wires every service against in-memory stores and recording
// fakes. withRetry attaches a retry queue to the dispatcher.
func newFixture(withRetry bool) *fixture {
	log := utils.NewTestLogger()
	f := &fixture{
		orders:        testutil.NewOrderStore(),
		users:         testutil.NewUserStore(),
		admins:        testutil.NewAdminStore(),
		notifications: testutil.NewNotificationStore(),
		mailer:        &testutil.Mailer{},
		push:          &testutil.Push{},
		publisher:     &testutil.Publisher{},
	}

	var queue services.RetryQueue
	if withRetry {
		f.retry = testutil.NewRetryQueue(16)
		queue = f.retry
	}

	f.auth = services.NewAuthService("services-test-access", "services-test-refresh", 15*time.Minute, time.Hour)
	f.email = services.NewEmailService(f.mailer, "https://shop.test", "https://admin.shop.test", testAdminEmail, log)
	f.pushService = services.NewPushService(f.push, f.users, f.admins, log)
	f.notificationSvc = services.NewNotificationService(f.notifications, f.publisher, log)
	f.orderSvc = services.NewOrderService(
		f.orders, f.users, f.email, f.pushService, f.notificationSvc,
		services.NewDispatcher(queue, log), log,
	)
	f.userSvc = services.NewUserService(f.users, f.auth, f.email, log)
	return f
}

func (f *fixture) customer(email, pushToken string) (*models.User, *models.Identity) {
	user := f.users.Put(&models.User{
		Name:                    "Registered Customer",
		Email:                   email,
		Role:                    models.UserRoleCustomer,
		PushToken:               pushToken,
		Wishlist:                []string{},
		NotificationPreferences: models.DefaultNotificationPreferences(),
	})
	return user, &models.Identity{
		Kind:   models.IdentityRegistered,
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Role:   models.UserRoleCustomer,
	}
}

func widgetOrder(email string) services.PlaceOrderInput {
	return services.PlaceOrderInput{
		OrderItems: []services.OrderItemInput{
			{Product: "p1", Name: "Widget", Price: 10, Quantity: 2},
		},
		TotalPrice: 20,
		ShippingAddress: &models.Address{
			FirstName: "Ada",
			LastName:  "Buyer",
			Email:     email,
			Address:   "1 Market St",
			City:      "Nairobi",
			Country:   "KE",
		},
		PaymentMethod: "card",
	}
}
