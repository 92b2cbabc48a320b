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

// OrderRepository stores orders and the per-day order counters
type OrderRepository struct {
	src Source
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(src Source) *OrderRepository {
	return &OrderRepository{src: src}
}

var _ services.OrderStore = (*OrderRepository)(nil)

func (r *OrderRepository) orders() *mongo.Collection {
	return r.src.Collection(database.CollectionOrders)
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if order.Timeline == nil {
		order.Timeline = []models.TimelineEntry{}
	}
	if order.Communications == nil {
		order.Communications = []models.Communication{}
	}
	if order.Shipping.TrackingHistory == nil {
		order.Shipping.TrackingHistory = []models.TrackingEvent{}
	}
	_, err := r.orders().InsertOne(ctx, order)
	return mapErr(err)
}

// FindByID gets an order by id.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByTrackingID gets an order by its public tracking id.
func (r *OrderRepository) FindByTrackingID(ctx context.Context, trackingID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"orderTrackingId": trackingID})
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var order models.Order
	if err := r.orders().FindOne(ctx, filter).Decode(&order); err != nil {
		return nil, mapErr(err)
	}
	return &order, nil
}

// FindByUser lists a registered user's orders, newest first.
func (r *OrderRepository) FindByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	oid, err := objectID(userID)
	if err != nil {
		return []*models.Order{}, nil
	}
	return r.find(ctx, bson.M{"user": oid}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// FindByGuestEmail lists guest orders whose guest, shipping or billing
// email matches.
func (r *OrderRepository) FindByGuestEmail(ctx context.Context, email string) ([]*models.Order, error) {
	filter := bson.M{
		"customerType": models.CustomerTypeGuest,
		"$or": bson.A{
			bson.M{"guestUser.email": email},
			bson.M{"shippingAddress.email": email},
			bson.M{"billingAddress.email": email},
		},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *OrderRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]*models.Order, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	cursor, err := r.orders().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []*models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ApplyStatusUpdate sets the new status and appends the timeline entry in
// one atomic update, returning the updated document.
func (r *OrderRepository) ApplyStatusUpdate(ctx context.Context, id string, u models.StatusUpdate) (*models.Order, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	set := bson.M{"orderStatus": u.Status, "updatedAt": u.At}
	if u.PaymentStatus != "" {
		set["paymentStatus"] = u.PaymentStatus
	}
	if u.TrackingNumber != "" {
		set["trackingNumber"] = u.TrackingNumber
		set["shipping.trackingNumber"] = u.TrackingNumber
	}
	if u.Carrier != "" {
		set["shipping.carrier"] = u.Carrier
	}
	push := bson.M{"timeline": u.Timeline()}
	if ev, ok := u.TrackingEvent(); ok {
		push["shipping.trackingHistory"] = ev
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var order models.Order
	err = r.orders().FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set, "$push": push}, opts).Decode(&order)
	if err != nil {
		return nil, mapErr(err)
	}
	return &order, nil
}

// AppendCommunication logs an email attempt on the order.
func (r *OrderRepository) AppendCommunication(ctx context.Context, id string, entry models.Communication) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.orders().UpdateByID(ctx, oid, bson.M{"$push": bson.M{"communications": entry}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

// Delete removes an order.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.orders().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

// NextSequence increments the named counter, creating it on first use.
func (r *OrderRepository) NextSequence(ctx context.Context, key string) (int64, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.src.Collection(database.CollectionCounters).
		FindOneAndUpdate(ctx, bson.M{"_id": key}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).
		Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// Count counts orders, optionally with one status.
func (r *OrderRepository) Count(ctx context.Context, status models.OrderStatus) (int64, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["orderStatus"] = status
	}
	return r.orders().CountDocuments(ctx, filter)
}

// CountSince counts orders created at or after since.
func (r *OrderRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()
	return r.orders().CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": since}})
}

// Revenue sums totalPrice over orders that are not cancelled.
func (r *OrderRepository) Revenue(ctx context.Context) (float64, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"orderStatus": bson.M{"$ne": models.OrderStatusCancelled}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$totalPrice"}}}},
	}
	cursor, err := r.orders().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// Recent lists up to limit orders created at or after since, newest first.
func (r *OrderRepository) Recent(ctx context.Context, since time.Time, limit int) ([]*models.Order, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{"createdAt": bson.M{"$gte": since}}, opts)
}

// Each streams every order, newest first, stopping at the first error.
func (r *OrderRepository) Each(ctx context.Context, fn func(*models.Order) error) error {
	ctx, cancel := withTimeout(ctx, scanTimeout)
	defer cancel()

	cursor, err := r.orders().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var order models.Order
		if err := cursor.Decode(&order); err != nil {
			return err
		}
		if err := fn(&order); err != nil {
			return err
		}
	}
	return cursor.Err()
}
