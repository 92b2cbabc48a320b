// Package repository implements the service store interfaces on MongoDB.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-backend/internal/services"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
	scanTimeout  = 2 * time.Minute
)

// Source hands out collections. database.DB satisfies it.
type Source interface {
	Collection(name string) *mongo.Collection
}

// mapErr translates driver errors into the store sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return services.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return services.ErrDuplicate
	}
	return err
}

// objectID parses a hex id; malformed ids cannot match anything.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, services.ErrNotFound
	}
	return oid, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
