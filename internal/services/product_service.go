package services

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
	"storefront-backend/internal/utils"
)

// CreateProductInput is the admin payload for a new catalog entry
type CreateProductInput struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	ActualPrice float64  `json:"actualPrice" binding:"gte=0"`
	Discount    float64  `json:"discount" binding:"gte=0,lte=100"`
	Category    string   `json:"category" binding:"required,objectid"`
	Subcategory string   `json:"subcategory" binding:"omitempty,objectid"`
	Images      []string `json:"images"`
	Stock       int      `json:"stock" binding:"gte=0"`
}

// ProductPage is one page of the catalog
type ProductPage struct {
	Products   []*models.Product `json:"products"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

// ProductService serves catalog reads and admin writes
type ProductService struct {
	products ProductStore
	now      func() time.Time
}

// NewProductService creates a new product service
func NewProductService(products ProductStore) *ProductService {
	return &ProductService{products: products, now: time.Now}
}

// List returns a page of products, optionally within one category.
func (s *ProductService) List(ctx context.Context, categoryID string, page, limit int) (*ProductPage, error) {
	if categoryID != "" && !utils.IsObjectID(categoryID) {
		return nil, NewValidationError("invalid category id")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	products, total, err := s.products.List(ctx, categoryID, page, limit)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []*models.Product{}
	}
	return &ProductPage{
		Products:   products,
		Total:      total,
		Page:       page,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// Get loads one product.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	if !utils.IsObjectID(id) {
		return nil, NewValidationError("invalid product id")
	}
	p, err := s.products.FindByID(ctx, id)
	return p, notFoundAs(err, "product")
}

// Create prices and stores a new product.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	name := utils.SanitizeString(in.Name)
	if name == "" {
		return nil, NewValidationError("name is required")
	}
	category, err := primitive.ObjectIDFromHex(in.Category)
	if err != nil {
		return nil, NewValidationError("invalid category id")
	}

	now := s.now()
	p := &models.Product{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		ActualPrice: in.ActualPrice,
		Discount:    in.Discount,
		Category:    category,
		Images:      in.Images,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if in.Subcategory != "" {
		sub, err := primitive.ObjectIDFromHex(in.Subcategory)
		if err != nil {
			return nil, NewValidationError("invalid subcategory id")
		}
		p.Subcategory = &sub
	}
	if err := p.ApplyPricing(); err != nil {
		return nil, NewValidationError("%s", err.Error())
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Featured lists promoted products in display order.
func (s *ProductService) Featured(ctx context.Context) ([]*models.Product, error) {
	products, err := s.products.ListFeatured(ctx)
	if products == nil && err == nil {
		products = []*models.Product{}
	}
	return products, err
}

// Categories lists categories with their subcategories.
func (s *ProductService) Categories(ctx context.Context) ([]*models.Category, error) {
	categories, err := s.products.ListCategories(ctx)
	if categories == nil && err == nil {
		categories = []*models.Category{}
	}
	return categories, err
}
