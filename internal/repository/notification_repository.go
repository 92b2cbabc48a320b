package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/database"
	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// NotificationRepository stores in-app notifications
type NotificationRepository struct {
	src Source
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(src Source) *NotificationRepository {
	return &NotificationRepository{src: src}
}

var _ services.NotificationStore = (*NotificationRepository)(nil)

func (r *NotificationRepository) notifications() *mongo.Collection {
	return r.src.Collection(database.CollectionNotifications)
}

// inboxFilter scopes a query to r and hides expired documents the TTL
// monitor has not removed yet.
func inboxFilter(rcpt models.Recipient, now time.Time) (bson.M, bool) {
	filter := bson.M{
		"recipientType": rcpt.Type,
		"expiresAt":     bson.M{"$gt": now},
	}
	switch rcpt.Type {
	case models.RecipientUser:
		oid, err := primitive.ObjectIDFromHex(rcpt.UserID)
		if err != nil {
			return nil, false
		}
		filter["userId"] = oid
	case models.RecipientGuest:
		if rcpt.GuestEmail == "" {
			return nil, false
		}
		filter["guestEmail"] = rcpt.GuestEmail
	case models.RecipientAdmin:
		if oid, err := primitive.ObjectIDFromHex(rcpt.UserID); err == nil {
			filter["$or"] = bson.A{bson.M{"userId": nil}, bson.M{"userId": oid}}
		} else {
			filter["userId"] = nil
		}
	default:
		return nil, false
	}
	return filter, true
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := r.notifications().InsertOne(ctx, n)
	return mapErr(err)
}

// Find lists a page of live notifications, newest first.
func (r *NotificationRepository) Find(ctx context.Context, q models.NotificationQuery) ([]*models.Notification, int64, error) {
	filter, ok := inboxFilter(q.Recipient, q.Now)
	if !ok {
		return []*models.Notification{}, 0, nil
	}
	if q.Type != "" {
		filter["type"] = q.Type
	}
	if q.Read != nil {
		filter["read"] = *q.Read
	}

	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	total, err := r.notifications().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))
	cursor, err := r.notifications().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	items := []*models.Notification{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountUnread counts live unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, rcpt models.Recipient, now time.Time) (int64, error) {
	filter, ok := inboxFilter(rcpt, now)
	if !ok {
		return 0, nil
	}
	filter["read"] = false

	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()
	return r.notifications().CountDocuments(ctx, filter)
}

// MarkRead sets read, keeping the first readAt.
func (r *NotificationRepository) MarkRead(ctx context.Context, rcpt models.Recipient, id string, at time.Time) (*models.Notification, error) {
	return r.flip(ctx, rcpt, id, bson.D{
		{Key: "read", Value: true},
		{Key: "readAt", Value: bson.M{"$ifNull": bson.A{"$readAt", at}}},
	})
}

// MarkClicked sets clicked and read, keeping the first timestamps.
func (r *NotificationRepository) MarkClicked(ctx context.Context, rcpt models.Recipient, id string, at time.Time) (*models.Notification, error) {
	return r.flip(ctx, rcpt, id, bson.D{
		{Key: "read", Value: true},
		{Key: "readAt", Value: bson.M{"$ifNull": bson.A{"$readAt", at}}},
		{Key: "clicked", Value: true},
		{Key: "clickedAt", Value: bson.M{"$ifNull": bson.A{"$clickedAt", at}}},
	})
}

// flip applies a one-way $set as an update pipeline so repeated calls
// leave the document unchanged.
func (r *NotificationRepository) flip(ctx context.Context, rcpt models.Recipient, id string, set bson.D) (*models.Notification, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	filter, ok := inboxFilter(rcpt, time.Now())
	if !ok {
		return nil, services.ErrNotFound
	}
	filter["_id"] = oid

	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	update := mongo.Pipeline{{{Key: "$set", Value: set}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var n models.Notification
	if err := r.notifications().FindOneAndUpdate(ctx, filter, update, opts).Decode(&n); err != nil {
		return nil, mapErr(err)
	}
	return &n, nil
}

// MarkAllRead marks every live unread notification in the inbox read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, rcpt models.Recipient, at time.Time) (int64, error) {
	filter, ok := inboxFilter(rcpt, at)
	if !ok {
		return 0, nil
	}
	filter["read"] = false

	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.notifications().UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true, "readAt": at}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes one notification from the inbox.
func (r *NotificationRepository) Delete(ctx context.Context, rcpt models.Recipient, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	filter, ok := inboxFilter(rcpt, time.Now())
	if !ok {
		return services.ErrNotFound
	}
	filter["_id"] = oid

	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.notifications().DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}
