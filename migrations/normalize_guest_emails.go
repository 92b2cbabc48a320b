package migrations

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-backend/database"
	"storefront-backend/internal/models"
)

// All lists every migration in the order it must run.
func All() []database.Migration {
	return []database.Migration{
		{Name: "normalize_guest_emails", Run: NormalizeGuestEmails},
	}
}

// NormalizeGuestEmails rewrites legacy guest orders so guestUser.email and
// orderReference equal the lowercased shippingAddress.email. Orders that
// never stored a shipping email borrow the first non-empty of
// guestUser.email and billingAddress.email.
func NormalizeGuestEmails(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(database.CollectionOrders)
	cursor, err := coll.Find(ctx, bson.M{"customerType": models.CustomerTypeGuest})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var order models.Order
		if err := cursor.Decode(&order); err != nil {
			return err
		}
		set, ok := guestEmailFix(&order)
		if !ok {
			continue
		}
		if _, err := coll.UpdateByID(ctx, order.ID, bson.M{"$set": set}); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// guestEmailFix returns the fields to set on a guest order, or false when
// it is already consistent or has no email at all.
func guestEmailFix(order *models.Order) (bson.M, bool) {
	canonical := normalize(order.ShippingAddress.Email)
	if canonical == "" && order.GuestUser != nil {
		canonical = normalize(order.GuestUser.Email)
	}
	if canonical == "" {
		canonical = normalize(order.BillingAddress.Email)
	}
	if canonical == "" {
		return nil, false
	}

	set := bson.M{}
	if order.ShippingAddress.Email != canonical {
		set["shippingAddress.email"] = canonical
	}
	if order.GuestUser == nil || order.GuestUser.Email != canonical {
		set["guestUser.email"] = canonical
	}
	if order.OrderReference != canonical {
		set["orderReference"] = canonical
	}
	return set, len(set) > 0
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
