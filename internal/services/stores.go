package services

import (
	"context"
	"time"

	"storefront-backend/internal/models"
)

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByTrackingID(ctx context.Context, trackingID string) (*models.Order, error)
	FindByUser(ctx context.Context, userID string) ([]*models.Order, error)
	// FindByGuestEmail matches guestUser.email, shippingAddress.email or billingAddress.email.
	FindByGuestEmail(ctx context.Context, email string) ([]*models.Order, error)
	ApplyStatusUpdate(ctx context.Context, id string, update models.StatusUpdate) (*models.Order, error)
	AppendCommunication(ctx context.Context, id string, entry models.Communication) error
	Delete(ctx context.Context, id string) error
	// NextSequence atomically increments and returns the named counter.
	NextSequence(ctx context.Context, key string) (int64, error)

	Count(ctx context.Context, status models.OrderStatus) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// Revenue sums totalPrice over orders that are not cancelled.
	Revenue(ctx context.Context) (float64, error)
	Recent(ctx context.Context, since time.Time, limit int) ([]*models.Order, error)
	// Each streams every order, newest first.
	Each(ctx context.Context, fn func(*models.Order) error) error
}

// UserStore persists storefront accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	FindByVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	// FindPushableAdmins returns admin-role users with a push token and push enabled.
	FindPushableAdmins(ctx context.Context) ([]*models.User, error)
	FindPushable(ctx context.Context) ([]*models.User, error)
	Save(ctx context.Context, user *models.User) error
	// PushSession appends a session to field ("tokens" or "refreshTokens") keeping the newest max.
	PushSession(ctx context.Context, userID, field string, session models.SessionToken, max int) error
	PullSession(ctx context.Context, userID, field, token string) error
	AddToWishlist(ctx context.Context, userID, productID string) error
	RemoveFromWishlist(ctx context.Context, userID, productID string) error
	Count(ctx context.Context) (int64, error)
}

// AdminStore persists back-office accounts.
type AdminStore interface {
	Create(ctx context.Context, admin *models.Admin) error
	FindByID(ctx context.Context, id string) (*models.Admin, error)
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
	FindWithPushToken(ctx context.Context) ([]*models.Admin, error)
	PushSession(ctx context.Context, adminID string, session models.SessionToken, max int) error
	PullSession(ctx context.Context, adminID, token string) error
}

// NotificationStore persists in-app notifications. Every read excludes
// documents whose expiresAt is not after the supplied time.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	Find(ctx context.Context, q models.NotificationQuery) ([]*models.Notification, int64, error)
	CountUnread(ctx context.Context, r models.Recipient, now time.Time) (int64, error)
	// MarkRead and MarkClicked are idempotent; they return ErrNotFound only
	// when no live notification with that id belongs to r.
	MarkRead(ctx context.Context, r models.Recipient, id string, at time.Time) (*models.Notification, error)
	MarkAllRead(ctx context.Context, r models.Recipient, at time.Time) (int64, error)
	MarkClicked(ctx context.Context, r models.Recipient, id string, at time.Time) (*models.Notification, error)
	Delete(ctx context.Context, r models.Recipient, id string) error
}

// ProductStore persists catalog data.
type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, categoryID string, page, limit int) ([]*models.Product, int64, error)
	Count(ctx context.Context) (int64, error)
	ListFeatured(ctx context.Context) ([]*models.Product, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
}
