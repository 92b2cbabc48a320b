package repository

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/database"
	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// ProductRepository stores the catalog: products, categories,
// subcategories and featured entries
type ProductRepository struct {
	src Source
}

// NewProductRepository creates a new product repository
func NewProductRepository(src Source) *ProductRepository {
	return &ProductRepository{src: src}
}

var _ services.ProductStore = (*ProductRepository)(nil)

// Create recomputes pricing and inserts the product.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	if err := p.ApplyPricing(); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.src.Collection(database.CollectionProducts).InsertOne(ctx, p)
	return mapErr(err)
}

// FindByID gets a product by id.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var p models.Product
	if err := r.src.Collection(database.CollectionProducts).FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// List pages through products, newest first.
func (r *ProductRepository) List(ctx context.Context, categoryID string, page, limit int) ([]*models.Product, int64, error) {
	filter := bson.M{}
	if categoryID != "" {
		oid, err := objectID(categoryID)
		if err != nil {
			return []*models.Product{}, 0, nil
		}
		filter["category"] = oid
	}

	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()
	coll := r.src.Collection(database.CollectionProducts)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	products := []*models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Count counts products.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()
	return r.src.Collection(database.CollectionProducts).CountDocuments(ctx, bson.M{})
}

// ListFeatured resolves featured entries to products in position order.
// Entries pointing at deleted products are skipped.
func (r *ProductRepository) ListFeatured(ctx context.Context) ([]*models.Product, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	cursor, err := r.src.Collection(database.CollectionFeatured).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var featured []models.Featured
	if err := cursor.All(ctx, &featured); err != nil {
		return nil, err
	}
	if len(featured) == 0 {
		return []*models.Product{}, nil
	}

	ids := make(bson.A, 0, len(featured))
	for _, f := range featured {
		ids = append(ids, f.Product)
	}
	cursor, err = r.src.Collection(database.CollectionProducts).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var found []*models.Product
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]*models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	products := make([]*models.Product, 0, len(featured))
	for _, f := range featured {
		if p, ok := byID[f.Product]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// ListCategories returns categories sorted by name with their subcategories.
func (r *ProductRepository) ListCategories(ctx context.Context) ([]*models.Category, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	cursor, err := r.src.Collection(database.CollectionCategories).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	categories := []*models.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}

	cursor, err = r.src.Collection(database.CollectionSubcategories).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var subs []models.Subcategory
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}

	byCategory := make(map[primitive.ObjectID][]models.Subcategory)
	for _, s := range subs {
		byCategory[s.Category] = append(byCategory[s.Category], s)
	}
	for _, c := range categories {
		c.Subcategories = byCategory[c.ID]
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}
