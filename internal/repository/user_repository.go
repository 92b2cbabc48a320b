package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-backend/database"
	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// UserRepository stores storefront accounts
type UserRepository struct {
	src Source
}

// NewUserRepository creates a new user repository
func NewUserRepository(src Source) *UserRepository {
	return &UserRepository{src: src}
}

var _ services.UserStore = (*UserRepository)(nil)

func (r *UserRepository) users() *mongo.Collection {
	return r.src.Collection(database.CollectionUsers)
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	fillUserArrays(user)
	_, err := r.users().InsertOne(ctx, user)
	return mapErr(err)
}

// FindByID gets a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByEmail gets a user by normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByResetToken gets the user holding a live reset token hash.
func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return r.findOne(ctx, bson.M{
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

// FindByVerificationToken gets the user holding a live verification token hash.
func (r *UserRepository) FindByVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return r.findOne(ctx, bson.M{
		"verificationToken":   tokenHash,
		"verificationExpires": bson.M{"$gt": now},
	})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var user models.User
	if err := r.users().FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// fillUserArrays stores empty arrays instead of null so $push and
// $addToSet keep working on the document.
func fillUserArrays(user *models.User) {
	if user.Tokens == nil {
		user.Tokens = []models.SessionToken{}
	}
	if user.RefreshTokens == nil {
		user.RefreshTokens = []models.SessionToken{}
	}
	if user.Wishlist == nil {
		user.Wishlist = []string{}
	}
}

func pushableFilter() bson.M {
	return bson.M{
		"pushToken":                    bson.M{"$exists": true, "$ne": ""},
		"notificationPreferences.push": true,
	}
}

// FindPushableAdmins lists admin-role users that accept push.
func (r *UserRepository) FindPushableAdmins(ctx context.Context) ([]*models.User, error) {
	filter := pushableFilter()
	filter["role"] = models.UserRoleAdmin
	return r.find(ctx, filter)
}

// FindPushable lists every user that accepts push.
func (r *UserRepository) FindPushable(ctx context.Context) ([]*models.User, error) {
	return r.find(ctx, pushableFilter())
}

func (r *UserRepository) find(ctx context.Context, filter bson.M) ([]*models.User, error) {
	ctx, cancel := withTimeout(ctx, scanTimeout)
	defer cancel()

	cursor, err := r.users().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []*models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Save replaces the stored document with user.
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	fillUserArrays(user)
	res, err := r.users().ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func sessionField(field string) error {
	if field != "tokens" && field != "refreshTokens" {
		return fmt.Errorf("unknown session field %q", field)
	}
	return nil
}

// PushSession appends a session and keeps only the newest max entries.
func (r *UserRepository) PushSession(ctx context.Context, userID, field string, session models.SessionToken, max int) error {
	if err := sessionField(field); err != nil {
		return err
	}
	update := bson.M{"$push": bson.M{field: bson.M{"$each": bson.A{session}, "$slice": -max}}}
	return r.updateByID(ctx, userID, update)
}

// PullSession removes a session by token.
func (r *UserRepository) PullSession(ctx context.Context, userID, field, token string) error {
	if err := sessionField(field); err != nil {
		return err
	}
	return r.updateByID(ctx, userID, bson.M{"$pull": bson.M{field: bson.M{"token": token}}})
}

// AddToWishlist adds a product id once.
func (r *UserRepository) AddToWishlist(ctx context.Context, userID, productID string) error {
	return r.updateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{"wishlist": productID},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
}

// RemoveFromWishlist removes a product id.
func (r *UserRepository) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	return r.updateByID(ctx, userID, bson.M{
		"$pull": bson.M{"wishlist": productID},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
}

func (r *UserRepository) updateByID(ctx context.Context, userID string, update bson.M) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.users().UpdateByID(ctx, oid, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

// Count counts all accounts.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()
	return r.users().CountDocuments(ctx, bson.M{})
}
