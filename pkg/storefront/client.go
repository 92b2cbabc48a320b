// Package storefront is a Go client for the storefront API with local
// cart and wishlist state.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Address is a shipping or billing address
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zipCode,omitempty"`
	Country   string `json:"country,omitempty"`
}

// OrderItem is one line of a placed order
type OrderItem struct {
	Product  string  `json:"product"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// Order is the client view of a placed order
type Order struct {
	ID              string      `json:"_id"`
	OrderNumber     string      `json:"orderNumber"`
	OrderTrackingID string      `json:"orderTrackingId"`
	CustomerType    string      `json:"customerType"`
	OrderStatus     string      `json:"orderStatus"`
	PaymentStatus   string      `json:"paymentStatus"`
	TotalPrice      float64     `json:"totalPrice"`
	TrackingNumber  string      `json:"trackingNumber,omitempty"`
	OrderItems      []OrderItem `json:"orderItems"`
	ShippingAddress Address     `json:"shippingAddress"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// Notification is an in-app notification
type Notification struct {
	ID        string                 `json:"_id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Read      bool                   `json:"read"`
	Clicked   bool                   `json:"clicked"`
	Priority  string                 `json:"priority"`
	CreatedAt time.Time              `json:"createdAt"`
}

// APIError is a non-2xx response carrying the API error envelope
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storefront: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("storefront: %d: %s", e.Status, e.Message)
}

// Client calls the storefront REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	guestEmail string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken authenticates requests with a bearer access token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithGuestEmail identifies a guest inbox for notification calls.
func WithGuestEmail(email string) Option {
	return func(c *Client) { c.guestEmail = strings.ToLower(strings.TrimSpace(email)) }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceOrderRequest is the canonical checkout payload
type PlaceOrderRequest struct {
	OrderItems      []PlaceOrderItem `json:"orderItems"`
	TotalPrice      float64          `json:"totalPrice"`
	ShippingAddress Address          `json:"shippingAddress"`
	BillingAddress  *Address         `json:"billingAddress,omitempty"`
	PaymentMethod   string           `json:"paymentMethod,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

// PlaceOrderItem is one checkout line
type PlaceOrderItem struct {
	Product  string  `json:"_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// PlaceOrder posts a checkout payload.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	var resp struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders/place-order", req, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, errors.New("storefront: response carried no order")
	}
	return resp.Order, nil
}

// Checkout places an order for the cart contents and clears the cart once
// the server accepts it.
func (c *Client) Checkout(ctx context.Context, cart *Cart, shipping Address, paymentMethod string) (*Order, error) {
	items := cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	req := PlaceOrderRequest{
		TotalPrice:      cart.Total(),
		ShippingAddress: shipping,
		PaymentMethod:   paymentMethod,
	}
	for _, it := range items {
		req.OrderItems = append(req.OrderItems, PlaceOrderItem{
			Product:  it.ProductID,
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			ImageURL: it.ImageURL,
		})
	}

	order, err := c.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := cart.Dispatch(CartAction{Type: ClearCart}); err != nil {
		return order, errors.Wrap(err, "order placed but cart not cleared")
	}
	return order, nil
}

// TrackOrder looks an order up by its public tracking id.
func (c *Client) TrackOrder(ctx context.Context, trackingID string) (*Order, error) {
	var resp struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/track/"+url.PathEscape(trackingID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

// ListNotifications returns the newest page of the caller's inbox.
func (c *Client) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	path := "/api/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MarkAsRead flags one notification as read.
func (c *Client) MarkAsRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "storefront: encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "storefront: build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.guestEmail != "" {
		req.Header.Set("X-Guest-Email", c.guestEmail)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "storefront: %s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "storefront: read response")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Message = envelope.Error
			apiErr.Code = envelope.Code
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "storefront: decode response")
}
