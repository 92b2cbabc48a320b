package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CustomerType distinguishes checkout identities
type CustomerType string

const (
	CustomerTypeGuest      CustomerType = "guest"
	CustomerTypeRegistered CustomerType = "registered"
)

// OrderStatus represents the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// PaymentStatus represents the payment state of an order
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusFailed   PaymentStatus = "Failed"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

// OrderNumberPattern matches generated order numbers.
var OrderNumberPattern = regexp.MustCompile(`^ORD-\d{6}-\d{3,}$`)

var orderEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether s is a known payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Address is used for both shipping and billing
type Address struct {
	FirstName string `json:"firstName" bson:"firstName"`
	LastName  string `json:"lastName" bson:"lastName"`
	Email     string `json:"email,omitempty" bson:"email,omitempty"`
	Phone     string `json:"phone,omitempty" bson:"phone,omitempty"`
	Address   string `json:"address,omitempty" bson:"address,omitempty"`
	Apartment string `json:"apartment,omitempty" bson:"apartment,omitempty"`
	City      string `json:"city,omitempty" bson:"city,omitempty"`
	State     string `json:"state,omitempty" bson:"state,omitempty"`
	ZipCode   string `json:"zipCode,omitempty" bson:"zipCode,omitempty"`
	Country   string `json:"country,omitempty" bson:"country,omitempty"`
}

// FullName joins first and last name.
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// GuestUser holds the contact details of a guest checkout
type GuestUser struct {
	Email string `json:"email" bson:"email"`
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty"`
}

// OrderItem is a product snapshot taken at checkout
type OrderItem struct {
	Product  string  `json:"product" bson:"product"`
	Name     string  `json:"name" bson:"name"`
	Quantity int     `json:"quantity" bson:"quantity"`
	Price    float64 `json:"price" bson:"price"`
	ImageURL string  `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
}

// TimelineEntry records one status transition
type TimelineEntry struct {
	Status    OrderStatus `json:"status" bson:"status"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Note      string      `json:"note,omitempty" bson:"note,omitempty"`
	UpdatedBy string      `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
}

// Communication logs an email or SMS sent about the order
type Communication struct {
	Type      string    `json:"type" bson:"type"`
	Subject   string    `json:"subject,omitempty" bson:"subject,omitempty"`
	Recipient string    `json:"recipient" bson:"recipient"`
	Template  string    `json:"template,omitempty" bson:"template,omitempty"`
	Status    string    `json:"status" bson:"status"`
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
	SentAt    time.Time `json:"sentAt" bson:"sentAt"`
}

// TrackingEvent is one carrier scan
type TrackingEvent struct {
	Status      string    `json:"status" bson:"status"`
	Location    string    `json:"location,omitempty" bson:"location,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// Shipping holds carrier details
type Shipping struct {
	Carrier         string          `json:"carrier,omitempty" bson:"carrier,omitempty"`
	TrackingNumber  string          `json:"trackingNumber,omitempty" bson:"trackingNumber,omitempty"`
	TrackingHistory []TrackingEvent `json:"trackingHistory" bson:"trackingHistory"`
}

// Order represents a placed order
type Order struct {
	ID              primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	CustomerType    CustomerType        `json:"customerType" bson:"customerType"`
	OrderReference  string              `json:"orderReference" bson:"orderReference"`
	User            *primitive.ObjectID `json:"user,omitempty" bson:"user,omitempty"`
	GuestUser       *GuestUser          `json:"guestUser,omitempty" bson:"guestUser,omitempty"`
	ShippingAddress Address             `json:"shippingAddress" bson:"shippingAddress"`
	BillingAddress  Address             `json:"billingAddress" bson:"billingAddress"`
	OrderItems      []OrderItem         `json:"orderItems" bson:"orderItems"`
	PaymentMethod   string              `json:"paymentMethod,omitempty" bson:"paymentMethod,omitempty"`
	PaymentStatus   PaymentStatus       `json:"paymentStatus" bson:"paymentStatus"`
	OrderStatus     OrderStatus         `json:"orderStatus" bson:"orderStatus"`
	TotalPrice      float64             `json:"totalPrice" bson:"totalPrice"`
	OrderNumber     string              `json:"orderNumber" bson:"orderNumber"`
	OrderTrackingID string              `json:"orderTrackingId" bson:"orderTrackingId"`
	TrackingNumber  string              `json:"trackingNumber,omitempty" bson:"trackingNumber,omitempty"`
	Notes           string              `json:"notes,omitempty" bson:"notes,omitempty"`
	Timeline        []TimelineEntry     `json:"timeline" bson:"timeline"`
	Communications  []Communication     `json:"communications" bson:"communications"`
	Shipping        Shipping            `json:"shipping" bson:"shipping"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// StatusUpdate describes an admin change applied atomically to an order
type StatusUpdate struct {
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	TrackingNumber string
	Carrier        string
	Note           string
	UpdatedBy      string
	At             time.Time
}

// Timeline returns the entry appended for this update.
func (u StatusUpdate) Timeline() TimelineEntry {
	return TimelineEntry{
		Status:    u.Status,
		Timestamp: u.At,
		Note:      u.Note,
		UpdatedBy: u.UpdatedBy,
	}
}

// TrackingEvent returns the shipping history entry for this update, if any.
func (u StatusUpdate) TrackingEvent() (TrackingEvent, bool) {
	if u.TrackingNumber == "" {
		return TrackingEvent{}, false
	}
	desc := "Tracking number " + u.TrackingNumber
	if u.Carrier != "" {
		desc += " (" + u.Carrier + ")"
	}
	return TrackingEvent{
		Status:      string(u.Status),
		Description: desc,
		Timestamp:   u.At,
	}, true
}

// ApplyStatusUpdate mutates the order in memory the same way the
// repository update does in the database.
func (o *Order) ApplyStatusUpdate(u StatusUpdate) {
	o.OrderStatus = u.Status
	if u.PaymentStatus != "" {
		o.PaymentStatus = u.PaymentStatus
	}
	if u.TrackingNumber != "" {
		o.TrackingNumber = u.TrackingNumber
		o.Shipping.TrackingNumber = u.TrackingNumber
	}
	if u.Carrier != "" {
		o.Shipping.Carrier = u.Carrier
	}
	o.Timeline = append(o.Timeline, u.Timeline())
	if ev, ok := u.TrackingEvent(); ok {
		o.Shipping.TrackingHistory = append(o.Shipping.TrackingHistory, ev)
	}
	o.UpdatedAt = u.At
}

// IsGuest reports whether the order was placed without an account.
func (o *Order) IsGuest() bool {
	return o.CustomerType == CustomerTypeGuest
}

// CustomerEmail resolves the contact address by priority: the explicit
// registered email, then guestUser, then the shipping address.
func (o *Order) CustomerEmail(registeredEmail string) string {
	if registeredEmail != "" {
		return registeredEmail
	}
	if o.GuestUser != nil && o.GuestUser.Email != "" {
		return o.GuestUser.Email
	}
	return o.ShippingAddress.Email
}

// CustomerName returns a display name for emails and exports.
func (o *Order) CustomerName() string {
	if o.GuestUser != nil && o.GuestUser.Name != "" {
		return o.GuestUser.Name
	}
	return o.ShippingAddress.FullName()
}

// ItemCount sums item quantities.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.OrderItems {
		n += it.Quantity
	}
	return n
}

// Normalize aligns derived fields before validation. shippingAddress.email
// is the canonical guest identity.
func (o *Order) Normalize() {
	o.ShippingAddress.Email = strings.ToLower(strings.TrimSpace(o.ShippingAddress.Email))
	o.BillingAddress.Email = strings.ToLower(strings.TrimSpace(o.BillingAddress.Email))

	if o.CustomerType != CustomerTypeGuest {
		return
	}
	if o.GuestUser == nil {
		o.GuestUser = &GuestUser{}
	}
	o.GuestUser.Email = o.ShippingAddress.Email
	if o.GuestUser.Name == "" {
		o.GuestUser.Name = o.ShippingAddress.FullName()
	}
	if o.GuestUser.Phone == "" {
		o.GuestUser.Phone = o.ShippingAddress.Phone
	}
	o.OrderReference = o.ShippingAddress.Email
}

// Validate checks the document invariants before it is written.
func (o *Order) Validate() error {
	if len(o.OrderItems) == 0 {
		return fmt.Errorf("order must contain at least one item")
	}
	for i, it := range o.OrderItems {
		if it.Name == "" || it.Quantity <= 0 || it.Price < 0 {
			return fmt.Errorf("orderItems[%d] requires name, positive quantity and non-negative price", i)
		}
	}
	if o.TotalPrice <= 0 {
		return fmt.Errorf("totalPrice must be greater than zero")
	}
	if !o.OrderStatus.IsValid() {
		return fmt.Errorf("invalid order status: %q", o.OrderStatus)
	}
	if !o.PaymentStatus.IsValid() {
		return fmt.Errorf("invalid payment status: %q", o.PaymentStatus)
	}

	switch o.CustomerType {
	case CustomerTypeGuest:
		if o.GuestUser == nil || o.GuestUser.Email == "" {
			return fmt.Errorf("guest orders require a guest email")
		}
		if o.GuestUser.Email != o.ShippingAddress.Email {
			return fmt.Errorf("guest email must match shipping address email")
		}
		if !orderEmailRegex.MatchString(o.OrderReference) {
			return fmt.Errorf("guest order reference must be an email address")
		}
	case CustomerTypeRegistered:
		if o.User == nil || o.User.IsZero() {
			return fmt.Errorf("registered orders require a user")
		}
		if !primitive.IsValidObjectID(o.OrderReference) {
			return fmt.Errorf("registered order reference must be a user id")
		}
		if o.GuestUser != nil {
			return fmt.Errorf("registered orders must not carry guest details")
		}
	default:
		return fmt.Errorf("invalid customer type: %q", o.CustomerType)
	}
	return nil
}

// FormatOrderNumber renders ORD-YYMMDD-### for a daily sequence value.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%03d", day.Format("060102"), seq)
}

// OrderSequenceKey names the per-day counter document.
func OrderSequenceKey(day time.Time) string {
	return "order-" + day.Format("060102")
}
