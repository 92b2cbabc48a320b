package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

// Dispatch task names
const (
	TaskCustomerEmail = "customer_email"
	TaskAdminEmail    = "admin_email"
	TaskAdminPush     = "admin_push"
	TaskAdminInApp    = "admin_in_app"
	TaskCustomerPush  = "customer_push"
	TaskCustomerInApp = "customer_in_app"
)

// OrderItemInput is one line of the checkout payload
type OrderItemInput struct {
	Product  string  `json:"_id" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Price    float64 `json:"price" binding:"gte=0"`
	Quantity int     `json:"quantity" binding:"required,gt=0"`
	ImageURL string  `json:"imageUrl"`
}

// PlaceOrderInput is the only accepted checkout payload shape
type PlaceOrderInput struct {
	OrderItems      []OrderItemInput `json:"orderItems" binding:"required,min=1,dive"`
	TotalPrice      float64          `json:"totalPrice" binding:"required,gt=0"`
	ShippingAddress *models.Address  `json:"shippingAddress" binding:"required"`
	BillingAddress  *models.Address  `json:"billingAddress"`
	PaymentMethod   string           `json:"paymentMethod"`
	Notes           string           `json:"notes"`
}

// StatusUpdateInput is an admin status change
type StatusUpdateInput struct {
	Status         models.OrderStatus   `json:"status" binding:"required"`
	PaymentStatus  models.PaymentStatus `json:"paymentStatus"`
	TrackingNumber string               `json:"trackingNumber"`
	Carrier        string               `json:"carrier"`
	Note           string               `json:"note"`
}

// OrderResult is an order together with the outcome of its notifications
type OrderResult struct {
	Order    *models.Order
	Dispatch DispatchReport
}

// OrderService handles order lifecycle business logic
type OrderService struct {
	orders        OrderStore
	users         UserStore
	email         *EmailService
	push          *PushService
	notifications *NotificationService
	dispatcher    *Dispatcher
	log           *logrus.Logger
	now           func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderStore,
	users UserStore,
	email *EmailService,
	push *PushService,
	notifications *NotificationService,
	dispatcher *Dispatcher,
	log *logrus.Logger,
) *OrderService {
	return &OrderService{
		orders:        orders,
		users:         users,
		email:         email,
		push:          push,
		notifications: notifications,
		dispatcher:    dispatcher,
		log:           log,
		now:           time.Now,
	}
}

// PlaceOrder persists a new order and runs the notification fan-out.
// Notification failures are reported in the result but never returned.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput, identity *models.Identity) (*OrderResult, error) {
	if len(in.OrderItems) == 0 {
		return nil, NewValidationError("order must contain at least one item")
	}
	if in.TotalPrice <= 0 {
		return nil, NewValidationError("totalPrice must be greater than zero")
	}
	if in.ShippingAddress == nil {
		return nil, NewValidationError("shippingAddress is required")
	}

	now := s.now()
	shipping := *in.ShippingAddress
	billing := shipping
	if in.BillingAddress != nil {
		billing = *in.BillingAddress
	}

	order := &models.Order{
		ID:              primitive.NewObjectID(),
		ShippingAddress: shipping,
		BillingAddress:  billing,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		OrderStatus:     models.OrderStatusPending,
		TotalPrice:      in.TotalPrice,
		OrderTrackingID: uuid.NewString(),
		Notes:           utils.SanitizeString(in.Notes),
		Communications:  []models.Communication{},
		Shipping:        models.Shipping{TrackingHistory: []models.TrackingEvent{}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	subtotal := decimal.Zero
	for _, it := range in.OrderItems {
		order.OrderItems = append(order.OrderItems, models.OrderItem{
			Product:  it.Product,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
			ImageURL: it.ImageURL,
		})
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if !subtotal.Equal(decimal.NewFromFloat(in.TotalPrice)) {
		s.log.WithFields(logrus.Fields{
			"subtotal":   subtotal.StringFixed(2),
			"totalPrice": in.TotalPrice,
		}).Debug("order total differs from item subtotal")
	}

	registeredEmail := ""
	if identity.IsRegistered() && identity.UserID != "" {
		oid, err := primitive.ObjectIDFromHex(identity.UserID)
		if err != nil {
			return nil, NewValidationError("invalid user id")
		}
		order.CustomerType = models.CustomerTypeRegistered
		order.User = &oid
		order.OrderReference = oid.Hex()
		registeredEmail = identity.Email
		if order.ShippingAddress.Email == "" {
			order.ShippingAddress.Email = identity.Email
		}
	} else {
		order.CustomerType = models.CustomerTypeGuest
		if order.ShippingAddress.Email == "" && identity != nil {
			order.ShippingAddress.Email = identity.Email
		}
		if strings.TrimSpace(order.ShippingAddress.Email) == "" {
			return nil, NewValidationError("shippingAddress.email is required for guest checkout")
		}
	}
	if order.BillingAddress.Email == "" {
		order.BillingAddress.Email = order.ShippingAddress.Email
	}

	order.Normalize()
	if order.IsGuest() && !utils.IsValidEmail(order.ShippingAddress.Email) {
		return nil, NewValidationError("shippingAddress.email is not a valid email address")
	}

	seq, err := s.orders.NextSequence(ctx, models.OrderSequenceKey(now))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate order number: %w", err)
	}
	order.OrderNumber = models.FormatOrderNumber(now, seq)
	order.Timeline = []models.TimelineEntry{{
		Status:    models.OrderStatusPending,
		Timestamp: now,
		Note:      "Order placed",
		UpdatedBy: string(order.CustomerType),
	}}

	if err := order.Validate(); err != nil {
		return nil, NewValidationError("%s", err.Error())
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"orderNumber":  order.OrderNumber,
		"customerType": order.CustomerType,
		"total":        order.TotalPrice,
	}).Info("order placed")

	report := s.dispatcher.Run(ctx, order.OrderNumber, s.placementTasks(order, registeredEmail))
	return &OrderResult{Order: order, Dispatch: report}, nil
}

// UpdateOrderStatus applies an admin status change and notifies the customer.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, in StatusUpdateInput, updatedBy string) (*OrderResult, error) {
	if !primitive.IsValidObjectID(orderID) {
		return nil, NewValidationError("invalid order id")
	}
	if !in.Status.IsValid() {
		return nil, NewValidationError("invalid order status: %q", in.Status)
	}
	if in.PaymentStatus != "" && !in.PaymentStatus.IsValid() {
		return nil, NewValidationError("invalid payment status: %q", in.PaymentStatus)
	}

	update := models.StatusUpdate{
		Status:         in.Status,
		PaymentStatus:  in.PaymentStatus,
		TrackingNumber: strings.TrimSpace(in.TrackingNumber),
		Carrier:        strings.TrimSpace(in.Carrier),
		Note:           utils.SanitizeString(in.Note),
		UpdatedBy:      updatedBy,
		At:             s.now(),
	}
	if update.Note == "" {
		update.Note = "Status changed to " + string(in.Status)
	}

	order, err := s.orders.ApplyStatusUpdate(ctx, orderID, update)
	if err != nil {
		return nil, notFoundAs(err, "order")
	}

	s.log.WithFields(logrus.Fields{
		"orderNumber": order.OrderNumber,
		"status":      order.OrderStatus,
		"updatedBy":   updatedBy,
	}).Info("order status updated")

	report := s.dispatcher.Run(ctx, order.OrderNumber, s.statusTasks(order, s.registeredEmail(ctx, order)))
	return &OrderResult{Order: order, Dispatch: report}, nil
}

// GetOrder returns an order the caller may see. Registered orders are
// visible to their owner and admins; guest orders to anyone holding the id.
func (s *OrderService) GetOrder(ctx context.Context, id string, identity *models.Identity) (*models.Order, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, NewValidationError("invalid order id")
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "order")
	}
	if order.IsGuest() || identity.IsAdmin() {
		return order, nil
	}
	if identity.IsRegistered() && order.User != nil && order.User.Hex() == identity.UserID {
		return order, nil
	}
	return nil, NewForbiddenError("you do not have access to this order")
}

// GetByTrackingID looks an order up by its public tracking id.
func (s *OrderService) GetByTrackingID(ctx context.Context, trackingID string) (*models.Order, error) {
	if !utils.ValidateUUID(trackingID) {
		return nil, NewValidationError("invalid tracking id")
	}
	order, err := s.orders.FindByTrackingID(ctx, trackingID)
	return order, notFoundAs(err, "order")
}

// ListUserOrders returns the signed-in user's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, identity *models.Identity) ([]*models.Order, error) {
	if !identity.IsRegistered() {
		return nil, NewForbiddenError("sign in to view your orders")
	}
	return s.orders.FindByUser(ctx, identity.UserID)
}

// ListGuestOrders returns orders placed under a guest email.
func (s *OrderService) ListGuestOrders(ctx context.Context, email string) ([]*models.Order, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, NewValidationError("email is required")
	}
	if !utils.IsValidEmail(email) {
		return nil, NewValidationError("invalid email address")
	}
	return s.orders.FindByGuestEmail(ctx, email)
}

// DeleteOrder hard-deletes an order.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if !primitive.IsValidObjectID(id) {
		return NewValidationError("invalid order id")
	}
	return notFoundAs(s.orders.Delete(ctx, id), "order")
}

// registeredEmail loads the account email of a registered order's owner.
func (s *OrderService) registeredEmail(ctx context.Context, order *models.Order) string {
	if order.User == nil {
		return ""
	}
	user, err := s.users.FindByID(ctx, order.User.Hex())
	if err != nil {
		s.log.WithError(err).WithField("orderNumber", order.OrderNumber).Warn("could not load order owner")
		return ""
	}
	return user.Email
}

func (s *OrderService) placementTasks(order *models.Order, registeredEmail string) []DispatchTask {
	customerEmail := order.CustomerEmail(registeredEmail)
	tasks := []DispatchTask{
		s.customerEmailTask(order, customerEmail, TemplateOrderPlaced),
	}

	if adminEmail := s.email.AdminEmail(); adminEmail != "" {
		tasks = append(tasks, DispatchTask{
			Name:    TaskAdminEmail,
			Channel: ChannelEmail,
			Run: func(ctx context.Context) error {
				_, err := s.email.SendOrderEmail(ctx, adminEmail, order, TemplateAdminOrderAlert)
				return err
			},
			Retry: s.retryJob(RetryOrderEmail, orderEmailJob{OrderID: order.ID.Hex(), Email: adminEmail, Template: TemplateAdminOrderAlert}),
		})
	}

	adminMsg := models.PushMessage{
		Title: "New order " + order.OrderNumber,
		Body:  fmt.Sprintf("%s placed an order for %s", order.CustomerName(), utils.FormatCurrency(order.TotalPrice)),
		Data:  orderPushData(order),
	}
	tasks = append(tasks,
		DispatchTask{
			Name:    TaskAdminPush,
			Channel: ChannelPush,
			Run: func(ctx context.Context) error {
				_, err := s.push.NotifyAdmins(ctx, adminMsg)
				return err
			},
			Retry: s.retryJob(RetryPushAdmins, pushJob{Message: adminMsg}),
		},
		DispatchTask{
			Name:    TaskAdminInApp,
			Channel: ChannelInApp,
			Run: func(ctx context.Context) error {
				_, err := s.notifications.Create(ctx, CreateNotificationInput{
					RecipientType: models.RecipientAdmin,
					Title:         adminMsg.Title,
					Body:          adminMsg.Body,
					Type:          models.NotificationTypeOrderUpdate,
					Data:          orderNotificationData(order),
					Priority:      models.PriorityHigh,
				})
				return err
			},
		},
	)

	title := "Order placed"
	body := fmt.Sprintf("Your order %s has been received.", order.OrderNumber)
	return append(tasks, s.customerTasks(order, title, body, models.NotificationTypeOrderUpdate)...)
}

func (s *OrderService) statusTasks(order *models.Order, registeredEmail string) []DispatchTask {
	tasks := []DispatchTask{
		s.customerEmailTask(order, order.CustomerEmail(registeredEmail), TemplateForStatus(order.OrderStatus)),
	}

	notifType := models.NotificationTypeOrderUpdate
	if order.OrderStatus == models.OrderStatusShipped {
		notifType = models.NotificationTypeShipping
	}
	title := "Order " + strings.ToLower(string(order.OrderStatus))
	body := fmt.Sprintf("Your order %s is now %s.", order.OrderNumber, order.OrderStatus)
	if order.TrackingNumber != "" {
		body += " Tracking number: " + order.TrackingNumber + "."
	}
	return append(tasks, s.customerTasks(order, title, body, notifType)...)
}

// customerEmailTask sends an order email and logs the attempt on the order.
func (s *OrderService) customerEmailTask(order *models.Order, email, templateKey string) DispatchTask {
	return DispatchTask{
		Name:    TaskCustomerEmail,
		Channel: ChannelEmail,
		Run: func(ctx context.Context) error {
			msg, err := s.email.SendOrderEmail(ctx, email, order, templateKey)
			entry := models.Communication{
				Type:      "email",
				Subject:   msg.Subject,
				Recipient: email,
				Template:  templateKey,
				Status:    "sent",
				SentAt:    s.now(),
			}
			switch {
			case err != nil:
				entry.Status = "failed"
				entry.Error = err.Error()
			case msg.Simulated:
				entry.Status = "simulated"
			}
			if logErr := s.orders.AppendCommunication(ctx, order.ID.Hex(), entry); logErr != nil {
				s.log.WithError(logErr).WithField("orderNumber", order.OrderNumber).Warn("failed to record communication")
			}
			return err
		},
		Retry: s.retryJob(RetryOrderEmail, orderEmailJob{OrderID: order.ID.Hex(), Email: email, Template: templateKey}),
	}
}

// customerTasks pushes to and creates an in-app notification for the
// order's customer.
func (s *OrderService) customerTasks(order *models.Order, title, body string, notifType models.NotificationType) []DispatchTask {
	target := PushTarget{}
	in := CreateNotificationInput{
		Title:    title,
		Body:     body,
		Type:     notifType,
		Data:     orderNotificationData(order),
		Priority: models.PriorityNormal,
	}
	if order.User != nil {
		target.UserID = order.User.Hex()
		in.RecipientType = models.RecipientUser
		in.UserID = order.User.Hex()
	} else {
		target.GuestEmail = order.CustomerEmail("")
		in.RecipientType = models.RecipientGuest
		in.GuestEmail = target.GuestEmail
	}

	msg := models.PushMessage{Title: title, Body: body, Data: orderPushData(order)}
	return []DispatchTask{
		{
			Name:    TaskCustomerPush,
			Channel: ChannelPush,
			Run: func(ctx context.Context) error {
				return s.push.NotifyUser(ctx, target, msg)
			},
			Retry: s.retryJob(RetryPushUser, pushJob{Target: target, Message: msg}),
		},
		{
			Name:    TaskCustomerInApp,
			Channel: ChannelInApp,
			Run: func(ctx context.Context) error {
				_, err := s.notifications.Create(ctx, in)
				return err
			},
		},
	}
}

type orderEmailJob struct {
	OrderID  string `json:"orderId"`
	Email    string `json:"email"`
	Template string `json:"template"`
}

type pushJob struct {
	Target  PushTarget         `json:"target"`
	Message models.PushMessage `json:"message"`
}

func (s *OrderService) retryJob(kind string, payload interface{}) *RetryJob {
	job, err := NewRetryJob(kind, payload)
	if err != nil {
		s.log.WithError(err).WithField("kind", kind).Warn("failed to build retry job")
		return nil
	}
	return job
}

// RegisterRetryHandlers teaches w how to re-run order dispatch jobs.
func (s *OrderService) RegisterRetryHandlers(w *RetryWorker) {
	w.Handle(RetryOrderEmail, func(ctx context.Context, payload json.RawMessage) error {
		var job orderEmailJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		order, err := s.orders.FindByID(ctx, job.OrderID)
		if err != nil {
			return err
		}
		_, err = s.email.SendOrderEmail(ctx, job.Email, order, job.Template)
		return err
	})
	w.Handle(RetryPushUser, func(ctx context.Context, payload json.RawMessage) error {
		var job pushJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		return s.push.NotifyUser(ctx, job.Target, job.Message)
	})
	w.Handle(RetryPushAdmins, func(ctx context.Context, payload json.RawMessage) error {
		var job pushJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		_, err := s.push.NotifyAdmins(ctx, job.Message)
		return err
	})
}

func orderPushData(order *models.Order) map[string]string {
	return map[string]string{
		"type":        "order_update",
		"orderId":     order.ID.Hex(),
		"orderNumber": order.OrderNumber,
		"trackingId":  order.OrderTrackingID,
		"status":      string(order.OrderStatus),
	}
}

func orderNotificationData(order *models.Order) map[string]interface{} {
	return map[string]interface{}{
		"orderId":     order.ID.Hex(),
		"orderNumber": order.OrderNumber,
		"trackingId":  order.OrderTrackingID,
		"status":      string(order.OrderStatus),
	}
}
