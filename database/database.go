package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names
const (
	CollectionOrders        = "orders"
	CollectionUsers         = "users"
	CollectionAdmins        = "admins"
	CollectionNotifications = "notifications"
	CollectionProducts      = "products"
	CollectionCategories    = "categories"
	CollectionSubcategories = "subcategories"
	CollectionFeatured      = "featureds"
	CollectionCounters      = "counters"
	CollectionMigrations    = "migrations"
)

const connectTimeout = 10 * time.Second

// DB owns the MongoDB client. Reconnect swaps the client, so callers
// fetch collections per operation instead of holding on to them.
type DB struct {
	mu     sync.RWMutex
	client *mongo.Client
	uri    string
	name   string
	log    *logrus.Logger
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, name string, log *logrus.Logger) (*DB, error) {
	client, err := dial(ctx, uri)
	if err != nil {
		return nil, err
	}
	log.WithField("database", name).Info("MongoDB connection established")
	return &DB{client: client, uri: uri, name: name, log: log}, nil
}

func dial(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Database returns the application database on the current client.
func (d *DB) Database() *mongo.Database {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.client.Database(d.name)
}

// Collection returns a collection on the current client.
func (d *DB) Collection(name string) *mongo.Collection {
	return d.Database().Collection(name)
}

// Ping checks the primary is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	d.mu.RLock()
	client := d.client
	d.mu.RUnlock()
	return client.Ping(ctx, readpref.Primary())
}

// Reconnect dials a fresh client and swaps it in.
func (d *DB) Reconnect(ctx context.Context) error {
	client, err := dial(ctx, d.uri)
	if err != nil {
		return err
	}

	d.mu.Lock()
	old := d.client
	d.client = client
	d.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = old.Disconnect(ctx)
	}()
	return nil
}

// Close disconnects the client.
func (d *DB) Close(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.client.Disconnect(ctx)
}
