// Package testutil provides in-memory stores and recording fakes for tests.
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

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.OrderItems = append([]models.OrderItem(nil), o.OrderItems...)
	c.Timeline = append([]models.TimelineEntry{}, o.Timeline...)
	c.Communications = append([]models.Communication{}, o.Communications...)
	c.Shipping.TrackingHistory = append([]models.TrackingEvent{}, o.Shipping.TrackingHistory...)
	if o.GuestUser != nil {
		g := *o.GuestUser
		c.GuestUser = &g
	}
	if o.User != nil {
		u := *o.User
		c.User = &u
	}
	return &c
}

// OrderStore is an in-memory services.OrderStore
type OrderStore struct {
	mu       sync.Mutex
	orders   map[primitive.ObjectID]*models.Order
	counters map[string]int64
	// FailCreate, when set, is returned by Create.
	FailCreate error
}

// NewOrderStore creates an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: map[primitive.ObjectID]*models.Order{}, counters: map[string]int64{}}
}

var _ services.OrderStore = (*OrderStore)(nil)

func (s *OrderStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	for _, o := range s.orders {
		if o.OrderTrackingID == order.OrderTrackingID || o.OrderNumber == order.OrderNumber {
			return services.ErrDuplicate
		}
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *OrderStore) get(id string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, services.ErrNotFound
	}
	o, ok := s.orders[oid]
	if !ok {
		return nil, services.ErrNotFound
	}
	return o, nil
}

func (s *OrderStore) FindByID(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return cloneOrder(o), nil
}

func (s *OrderStore) FindByTrackingID(_ context.Context, trackingID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderTrackingID == trackingID {
			return cloneOrder(o), nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *OrderStore) filter(keep func(*models.Order) bool) []*models.Order {
	out := []*models.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *OrderStore) FindByUser(_ context.Context, userID string) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(o *models.Order) bool {
		return o.User != nil && o.User.Hex() == userID
	}), nil
}

func (s *OrderStore) FindByGuestEmail(_ context.Context, email string) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(o *models.Order) bool {
		if !o.IsGuest() {
			return false
		}
		return (o.GuestUser != nil && o.GuestUser.Email == email) ||
			o.ShippingAddress.Email == email || o.BillingAddress.Email == email
	}), nil
}

func (s *OrderStore) ApplyStatusUpdate(_ context.Context, id string, u models.StatusUpdate) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(id)
	if err != nil {
		return nil, err
	}
	o.ApplyStatusUpdate(u)
	return cloneOrder(o), nil
}

func (s *OrderStore) AppendCommunication(_ context.Context, id string, entry models.Communication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(id)
	if err != nil {
		return err
	}
	o.Communications = append(o.Communications, entry)
	return nil
}

func (s *OrderStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(id)
	if err != nil {
		return err
	}
	delete(s.orders, o.ID)
	return nil
}

func (s *OrderStore) NextSequence(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

func (s *OrderStore) Count(_ context.Context, status models.OrderStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filter(func(o *models.Order) bool {
		return status == "" || o.OrderStatus == status
	}))), nil
}

func (s *OrderStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filter(func(o *models.Order) bool { return !o.CreatedAt.Before(since) }))), nil
}

func (s *OrderStore) Revenue(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, o := range s.orders {
		if o.OrderStatus != models.OrderStatusCancelled {
			total += o.TotalPrice
		}
	}
	return total, nil
}

func (s *OrderStore) Recent(_ context.Context, since time.Time, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(func(o *models.Order) bool { return !o.CreatedAt.Before(since) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *OrderStore) Each(_ context.Context, fn func(*models.Order) error) error {
	s.mu.Lock()
	all := s.filter(func(*models.Order) bool { return true })
	s.mu.Unlock()
	for _, o := range all {
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}

// Put stores an order as-is, for seeding.
func (s *OrderStore) Put(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.orders[order.ID] = cloneOrder(order)
}

// Len returns the number of stored orders.
func (s *OrderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Wishlist = append([]string{}, u.Wishlist...)
	c.Tokens = append([]models.SessionToken{}, u.Tokens...)
	c.RefreshTokens = append([]models.SessionToken{}, u.RefreshTokens...)
	return &c
}

// UserStore is an in-memory services.UserStore
type UserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

// NewUserStore creates an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: map[primitive.ObjectID]*models.User{}}
}

var _ services.UserStore = (*UserStore)(nil)

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return services.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *UserStore) get(id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, services.ErrNotFound
	}
	u, ok := s.users[oid]
	if !ok {
		return nil, services.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) first(match func(*models.User) bool) (*models.User, error) {
	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *UserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return cloneUser(u), nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first(func(u *models.User) bool { return u.Email == email })
}

func (s *UserStore) FindByResetToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first(func(u *models.User) bool {
		return u.ResetPasswordToken == hash && u.ResetPasswordExpires != nil && u.ResetPasswordExpires.After(now)
	})
}

func (s *UserStore) FindByVerificationToken(_ context.Context, hash string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first(func(u *models.User) bool {
		return u.VerificationToken == hash && u.VerificationExpires != nil && u.VerificationExpires.After(now)
	})
}

func (s *UserStore) all(match func(*models.User) bool) []*models.User {
	out := []*models.User{}
	for _, u := range s.users {
		if match(u) {
			out = append(out, cloneUser(u))
		}
	}
	return out
}

func (s *UserStore) FindPushableAdmins(_ context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.all(func(u *models.User) bool { return u.IsAdmin() && u.WantsPush() }), nil
}

func (s *UserStore) FindPushable(_ context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.all(func(u *models.User) bool { return u.WantsPush() }), nil
}

func (s *UserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return services.ErrNotFound
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *UserStore) sessions(u *models.User, field string) *[]models.SessionToken {
	if field == "refreshTokens" {
		return &u.RefreshTokens
	}
	return &u.Tokens
}

func (s *UserStore) PushSession(_ context.Context, userID, field string, session models.SessionToken, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	list := s.sessions(u, field)
	*list = models.AppendSession(*list, session, max)
	return nil
}

func (s *UserStore) PullSession(_ context.Context, userID, field, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	list := s.sessions(u, field)
	*list = models.RemoveSession(*list, token)
	return nil
}

func (s *UserStore) AddToWishlist(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	for _, p := range u.Wishlist {
		if p == productID {
			return nil
		}
	}
	u.Wishlist = append(u.Wishlist, productID)
	return nil
}

func (s *UserStore) RemoveFromWishlist(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	out := u.Wishlist[:0:0]
	for _, p := range u.Wishlist {
		if p != productID {
			out = append(out, p)
		}
	}
	u.Wishlist = out
	return nil
}

func (s *UserStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

// Put stores a user as-is, for seeding.
func (s *UserStore) Put(user *models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = cloneUser(user)
	return user
}

// AdminStore is an in-memory services.AdminStore
type AdminStore struct {
	mu     sync.Mutex
	admins map[primitive.ObjectID]*models.Admin
}

// NewAdminStore creates an empty store.
func NewAdminStore() *AdminStore {
	return &AdminStore{admins: map[primitive.ObjectID]*models.Admin{}}
}

var _ services.AdminStore = (*AdminStore)(nil)

func cloneAdmin(a *models.Admin) *models.Admin {
	c := *a
	c.Tokens = append([]models.SessionToken{}, a.Tokens...)
	return &c
}

func (s *AdminStore) Create(_ context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Email == admin.Email {
			return services.ErrDuplicate
		}
	}
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	s.admins[admin.ID] = cloneAdmin(admin)
	return nil
}

func (s *AdminStore) get(id string) (*models.Admin, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, services.ErrNotFound
	}
	a, ok := s.admins[oid]
	if !ok {
		return nil, services.ErrNotFound
	}
	return a, nil
}

func (s *AdminStore) FindByID(_ context.Context, id string) (*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return cloneAdmin(a), nil
}

func (s *AdminStore) FindByEmail(_ context.Context, email string) (*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Email == email {
			return cloneAdmin(a), nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *AdminStore) FindWithPushToken(_ context.Context) ([]*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Admin{}
	for _, a := range s.admins {
		if a.PushToken != "" {
			out = append(out, cloneAdmin(a))
		}
	}
	return out, nil
}

func (s *AdminStore) PushSession(_ context.Context, adminID string, session models.SessionToken, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(adminID)
	if err != nil {
		return err
	}
	a.Tokens = models.AppendSession(a.Tokens, session, max)
	return nil
}

func (s *AdminStore) PullSession(_ context.Context, adminID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(adminID)
	if err != nil {
		return err
	}
	a.Tokens = models.RemoveSession(a.Tokens, token)
	return nil
}

// Put stores an admin as-is, for seeding.
func (s *AdminStore) Put(admin *models.Admin) *models.Admin {
	s.mu.Lock()
	defer s.mu.Unlock()
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	s.admins[admin.ID] = cloneAdmin(admin)
	return admin
}
