package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-backend/database"
	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// AdminRepository stores back-office accounts
type AdminRepository struct {
	src Source
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(src Source) *AdminRepository {
	return &AdminRepository{src: src}
}

var _ services.AdminStore = (*AdminRepository)(nil)

func (r *AdminRepository) admins() *mongo.Collection {
	return r.src.Collection(database.CollectionAdmins)
}

// Create inserts a new admin.
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	if admin.Tokens == nil {
		admin.Tokens = []models.SessionToken{}
	}
	_, err := r.admins().InsertOne(ctx, admin)
	return mapErr(err)
}

// FindByID gets an admin by id.
func (r *AdminRepository) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByEmail gets an admin by email.
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *AdminRepository) findOne(ctx context.Context, filter bson.M) (*models.Admin, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var admin models.Admin
	if err := r.admins().FindOne(ctx, filter).Decode(&admin); err != nil {
		return nil, mapErr(err)
	}
	return &admin, nil
}

// FindWithPushToken lists admins with a registered device.
func (r *AdminRepository) FindWithPushToken(ctx context.Context) ([]*models.Admin, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	cursor, err := r.admins().Find(ctx, bson.M{"pushToken": bson.M{"$exists": true, "$ne": ""}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	admins := []*models.Admin{}
	if err := cursor.All(ctx, &admins); err != nil {
		return nil, err
	}
	return admins, nil
}

// PushSession appends a token and keeps only the newest max.
func (r *AdminRepository) PushSession(ctx context.Context, adminID string, session models.SessionToken, max int) error {
	return r.updateByID(ctx, adminID, bson.M{"$push": bson.M{"tokens": bson.M{"$each": bson.A{session}, "$slice": -max}}})
}

// PullSession removes a token.
func (r *AdminRepository) PullSession(ctx context.Context, adminID, token string) error {
	return r.updateByID(ctx, adminID, bson.M{"$pull": bson.M{"tokens": bson.M{"token": token}}})
}

func (r *AdminRepository) updateByID(ctx context.Context, adminID string, update bson.M) error {
	oid, err := objectID(adminID)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.admins().UpdateByID(ctx, oid, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}
