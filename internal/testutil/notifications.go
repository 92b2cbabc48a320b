package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// NotificationStore is an in-memory services.NotificationStore
type NotificationStore struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*models.Notification
}

// NewNotificationStore creates an empty store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{items: map[primitive.ObjectID]*models.Notification{}}
}

var _ services.NotificationStore = (*NotificationStore)(nil)

func cloneNotification(n *models.Notification) *models.Notification {
	c := *n
	return &c
}

func (s *NotificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	s.items[n.ID] = cloneNotification(n)
	return nil
}

func (s *NotificationStore) inbox(r models.Recipient, now time.Time) []*models.Notification {
	out := []*models.Notification{}
	for _, n := range s.items {
		if r.Matches(n) && !n.IsExpired(now) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *NotificationStore) Find(_ context.Context, q models.NotificationQuery) ([]*models.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*models.Notification{}
	for _, n := range s.inbox(q.Recipient, q.Now) {
		if q.Type != "" && n.Type != q.Type {
			continue
		}
		if q.Read != nil && n.Read != *q.Read {
			continue
		}
		matched = append(matched, n)
	}

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page := make([]*models.Notification, 0, end-start)
	for _, n := range matched[start:end] {
		page = append(page, cloneNotification(n))
	}
	return page, total, nil
}

func (s *NotificationStore) CountUnread(_ context.Context, r models.Recipient, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.inbox(r, now) {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) owned(r models.Recipient, id string, now time.Time) (*models.Notification, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, services.ErrNotFound
	}
	n, ok := s.items[oid]
	if !ok || !r.Matches(n) || n.IsExpired(now) {
		return nil, services.ErrNotFound
	}
	return n, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, r models.Recipient, id string, at time.Time) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.owned(r, id, time.Now())
	if err != nil {
		return nil, err
	}
	n.Read = true
	if n.ReadAt == nil {
		t := at
		n.ReadAt = &t
	}
	return cloneNotification(n), nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, r models.Recipient, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for _, n := range s.inbox(r, at) {
		if n.Read {
			continue
		}
		t := at
		n.Read = true
		n.ReadAt = &t
		modified++
	}
	return modified, nil
}

func (s *NotificationStore) MarkClicked(_ context.Context, r models.Recipient, id string, at time.Time) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.owned(r, id, time.Now())
	if err != nil {
		return nil, err
	}
	n.Read = true
	n.Clicked = true
	if n.ReadAt == nil {
		t := at
		n.ReadAt = &t
	}
	if n.ClickedAt == nil {
		t := at
		n.ClickedAt = &t
	}
	return cloneNotification(n), nil
}

func (s *NotificationStore) Delete(_ context.Context, r models.Recipient, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.owned(r, id, time.Now())
	if err != nil {
		return err
	}
	delete(s.items, n.ID)
	return nil
}

// All returns every stored notification, expired ones included.
func (s *NotificationStore) All() []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Notification, 0, len(s.items))
	for _, n := range s.items {
		out = append(out, cloneNotification(n))
	}
	return out
}

// ProductStore is an in-memory services.ProductStore
type ProductStore struct {
	mu         sync.Mutex
	products   []*models.Product
	featured   []primitive.ObjectID
	categories []*models.Category
}

// NewProductStore creates an empty store.
func NewProductStore() *ProductStore {
	return &ProductStore{}
}

var _ services.ProductStore = (*ProductStore)(nil)

func (s *ProductStore) Create(_ context.Context, p *models.Product) error {
	if err := p.ApplyPricing(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	c := *p
	s.products = append(s.products, &c)
	return nil
}

func (s *ProductStore) FindByID(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID.Hex() == id {
			c := *p
			return &c, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *ProductStore) List(_ context.Context, categoryID string, page, limit int) ([]*models.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []*models.Product{}
	for i := len(s.products) - 1; i >= 0; i-- {
		p := s.products[i]
		if categoryID == "" || p.Category.Hex() == categoryID {
			c := *p
			matched = append(matched, &c)
		}
	}
	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *ProductStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.products)), nil
}

func (s *ProductStore) ListFeatured(_ context.Context) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Product{}
	for _, id := range s.featured {
		for _, p := range s.products {
			if p.ID == id {
				c := *p
				out = append(out, &c)
			}
		}
	}
	return out, nil
}

func (s *ProductStore) ListCategories(_ context.Context) ([]*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*models.Category{}, s.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Feature appends a product to the featured list.
func (s *ProductStore) Feature(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.featured = append(s.featured, id)
}

// AddCategory stores a category.
func (s *ProductStore) AddCategory(c *models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.categories = append(s.categories, c)
}
