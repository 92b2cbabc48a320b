package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

// Order email template keys
const (
	TemplateOrderPlaced     = "order_placed"
	TemplateOrderConfirmed  = "order_confirmed"
	TemplateOrderShipped    = "order_shipped"
	TemplateOrderDelivered  = "order_delivered"
	TemplateOrderCancelled  = "order_cancelled"
	TemplateAdminOrderAlert = "admin_order_placed"
)

type orderTemplate struct {
	subject string // fmt pattern taking the order number
	heading string
	intro   string
}

var orderTemplates = map[string]orderTemplate{
	TemplateOrderPlaced: {
		subject: "Order Confirmation - %s",
		heading: "Thank you for your order!",
		intro:   "We've received your order and will let you know as soon as it is on its way.",
	},
	TemplateOrderConfirmed: {
		subject: "Your order %s is being processed",
		heading: "Your order is being prepared",
		intro:   "Good news! We've confirmed your order and started preparing it.",
	},
	TemplateOrderShipped: {
		subject: "Your order %s has shipped",
		heading: "Your order is on its way",
		intro:   "Your package has left our warehouse.",
	},
	TemplateOrderDelivered: {
		subject: "Your order %s has been delivered",
		heading: "Delivered!",
		intro:   "Your order has been delivered. We hope you enjoy it.",
	},
	TemplateOrderCancelled: {
		subject: "Your order %s has been cancelled",
		heading: "Order cancelled",
		intro:   "Your order has been cancelled. If you were charged, a refund will follow.",
	},
	TemplateAdminOrderAlert: {
		subject: "New order received - %s",
		heading: "A new order was placed",
		intro:   "A customer just placed an order. Review it in the admin panel.",
	},
}

// TemplateForStatus maps an order status to its customer email template.
func TemplateForStatus(status models.OrderStatus) string {
	switch status {
	case models.OrderStatusProcessing:
		return TemplateOrderConfirmed
	case models.OrderStatusShipped:
		return TemplateOrderShipped
	case models.OrderStatusDelivered:
		return TemplateOrderDelivered
	case models.OrderStatusCancelled:
		return TemplateOrderCancelled
	}
	return TemplateOrderPlaced
}

// RenderedEmail is a subject and HTML body ready to send
type RenderedEmail struct {
	Subject   string
	Body      string
	Simulated bool
}

// EmailService composes storefront emails and hands them to a MailSender
type EmailService struct {
	mailer        MailSender
	clientURL     string
	adminPanelURL string
	adminEmail    string
	log           *logrus.Logger
}

// NewEmailService creates a new email service
func NewEmailService(mailer MailSender, clientURL, adminPanelURL, adminEmail string, log *logrus.Logger) *EmailService {
	return &EmailService{
		mailer:        mailer,
		clientURL:     strings.TrimRight(clientURL, "/"),
		adminPanelURL: strings.TrimRight(adminPanelURL, "/"),
		adminEmail:    adminEmail,
		log:           log,
	}
}

// AdminEmail is the address that receives new-order alerts.
func (s *EmailService) AdminEmail() string {
	return s.adminEmail
}

// TrackingURL is the public tracking page for an order.
func (s *EmailService) TrackingURL(order *models.Order) string {
	return fmt.Sprintf("%s/track-order/%s", s.clientURL, order.OrderTrackingID)
}

// RenderOrderEmail builds the email for templateKey, falling back to
// order_placed for unknown keys.
func (s *EmailService) RenderOrderEmail(order *models.Order, templateKey string) RenderedEmail {
	tpl, ok := orderTemplates[templateKey]
	if !ok {
		tpl = orderTemplates[TemplateOrderPlaced]
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<p>%s</p>`, html.EscapeString(tpl.intro))
	fmt.Fprintf(&b, `<p><strong>Order number:</strong> %s<br><strong>Status:</strong> %s</p>`,
		html.EscapeString(order.OrderNumber), html.EscapeString(string(order.OrderStatus)))
	if order.TrackingNumber != "" {
		fmt.Fprintf(&b, `<p><strong>Tracking number:</strong> %s</p>`, html.EscapeString(order.TrackingNumber))
	}

	b.WriteString(`<table class="items"><tr><th>Item</th><th>Qty</th><th>Price</th></tr>`)
	for _, it := range order.OrderItems {
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%d</td><td>%s</td></tr>`,
			html.EscapeString(it.Name), it.Quantity, utils.FormatCurrency(it.Price))
	}
	fmt.Fprintf(&b, `<tr><td colspan="2"><strong>Total</strong></td><td><strong>%s</strong></td></tr></table>`,
		utils.FormatCurrency(order.TotalPrice))

	a := order.ShippingAddress
	fmt.Fprintf(&b, `<p><strong>Shipping to:</strong><br>%s<br>%s</p>`,
		html.EscapeString(a.FullName()),
		html.EscapeString(utils.FullName(a.Address, a.Apartment, a.City, a.State, a.ZipCode, a.Country)))

	buttonText, buttonURL := "Track your order", s.TrackingURL(order)
	if templateKey == TemplateAdminOrderAlert {
		fmt.Fprintf(&b, `<p><strong>Customer:</strong> %s (%s)</p>`,
			html.EscapeString(order.CustomerName()), html.EscapeString(order.CustomerEmail("")))
		buttonText, buttonURL = "Open in admin panel", fmt.Sprintf("%s/orders/%s", s.adminPanelURL, order.ID.Hex())
	}

	return RenderedEmail{
		Subject: fmt.Sprintf(tpl.subject, order.OrderNumber),
		Body:    utils.GetEmailTemplate(tpl.heading, b.String(), buttonText, buttonURL),
	}
}

// SendOrderEmail renders and sends an order email. Errors propagate so the
// caller decides whether to swallow them.
func (s *EmailService) SendOrderEmail(ctx context.Context, email string, order *models.Order, templateKey string) (RenderedEmail, error) {
	msg := s.RenderOrderEmail(order, templateKey)
	if email == "" {
		return msg, fmt.Errorf("no recipient for %s email on order %s", templateKey, order.OrderNumber)
	}
	simulated, err := s.send(ctx, email, msg.Subject, msg.Body)
	msg.Simulated = simulated
	return msg, err
}

// SendPasswordResetEmail sends the reset link for a raw token.
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password/%s", s.clientURL, token)
	content := fmt.Sprintf(`<p>Hello %s,</p><p>We received a request to reset your password. The link below is valid for %d minutes.</p><p>If you didn't ask for this, you can ignore this email.</p>`,
		html.EscapeString(name), int(models.ResetTokenTTL.Minutes()))
	body := utils.GetEmailTemplate("Reset your password", content, "Reset password", resetURL)
	_, err := s.send(ctx, to, "Password reset request", body)
	return err
}

// SendVerificationEmail sends the account verification link.
func (s *EmailService) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	verifyURL := fmt.Sprintf("%s/verify-email/%s", s.clientURL, token)
	content := fmt.Sprintf(`<p>Hello %s,</p><p>Please confirm your email address. The link expires in %d hours.</p>`,
		html.EscapeString(name), int(models.VerificationTokenTTL.Hours()))
	body := utils.GetEmailTemplate("Verify your email", content, "Verify email", verifyURL)
	_, err := s.send(ctx, to, "Verify your email address", body)
	return err
}

// send hands one message to the mailer. A simulated delivery is not an error.
func (s *EmailService) send(ctx context.Context, to, subject, body string) (bool, error) {
	err := s.mailer.Send(ctx, to, subject, body)
	if errors.Is(err, ErrEmailSimulated) {
		return true, nil
	}
	return false, err
}
