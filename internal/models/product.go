package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category groups products
type Category struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Slug          string             `json:"slug" bson:"slug"`
	Subcategories []Subcategory      `json:"subcategories,omitempty" bson:"-"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
}

// Subcategory belongs to one category
type Subcategory struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Slug      string             `json:"slug" bson:"slug"`
	Category  primitive.ObjectID `json:"category" bson:"category"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// Product is a catalog entry
type Product struct {
	ID              primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Name            string              `json:"name" bson:"name"`
	Description     string              `json:"description,omitempty" bson:"description,omitempty"`
	ActualPrice     float64             `json:"actualPrice" bson:"actualPrice"`
	Discount        float64             `json:"discount" bson:"discount"`
	DiscountedPrice float64             `json:"discountedPrice" bson:"discountedPrice"`
	Category        primitive.ObjectID  `json:"category" bson:"category"`
	Subcategory     *primitive.ObjectID `json:"subcategory,omitempty" bson:"subcategory,omitempty"`
	Images          []string            `json:"images" bson:"images"`
	Stock           int                 `json:"stock" bson:"stock"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// Featured promotes a product on the storefront
type Featured struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Product   primitive.ObjectID `json:"product" bson:"product"`
	Position  int                `json:"position" bson:"position"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// DiscountedPrice computes actual × (1 − discount/100) rounded to cents.
func DiscountedPrice(actual, discount float64) float64 {
	pct := decimal.NewFromFloat(discount).Div(decimal.NewFromInt(100))
	price := decimal.NewFromFloat(actual).Mul(decimal.NewFromInt(1).Sub(pct))
	f, _ := price.Round(2).Float64()
	return f
}

// ApplyPricing recomputes derived price fields; called before every save.
func (p *Product) ApplyPricing() error {
	if p.ActualPrice < 0 {
		return fmt.Errorf("actualPrice must not be negative")
	}
	if p.Discount < 0 || p.Discount > 100 {
		return fmt.Errorf("discount must be between 0 and 100")
	}
	p.DiscountedPrice = DiscountedPrice(p.ActualPrice, p.Discount)
	return nil
}
