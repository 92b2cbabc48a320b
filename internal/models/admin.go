package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Admin is a back-office account with its own token namespace
type Admin struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	PushToken string             `json:"-" bson:"pushToken,omitempty"`
	Tokens    []SessionToken     `json:"-" bson:"tokens"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// HasSession reports whether token is in the admin's active token list.
func (a *Admin) HasSession(token string) bool {
	return findSession(a.Tokens, token) >= 0
}

// AdminLogin represents admin login data
type AdminLogin struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
