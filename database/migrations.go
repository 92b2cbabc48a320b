package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Migration is a named one-off data change.
type Migration struct {
	Name string
	Run  func(ctx context.Context, db *mongo.Database) error
}

// MigrationManager runs migrations once each, recording applied names in
// the migrations collection.
type MigrationManager struct {
	db *DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// RunMigrations executes all pending migrations in order.
func (m *MigrationManager) RunMigrations(ctx context.Context, migrations []Migration) error {
	m.db.log.Info("starting database migrations")
	for _, mig := range migrations {
		if err := m.runMigration(ctx, mig); err != nil {
			return fmt.Errorf("migration %s failed: %w", mig.Name, err)
		}
	}
	m.db.log.Info("all migrations completed")
	return nil
}

func (m *MigrationManager) runMigration(ctx context.Context, mig Migration) error {
	coll := m.db.Collection(CollectionMigrations)

	err := coll.FindOne(ctx, bson.M{"name": mig.Name}).Err()
	if err == nil {
		m.db.log.WithField("migration", mig.Name).Debug("migration already executed, skipping")
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}

	m.db.log.WithField("migration", mig.Name).Info("running migration")
	if err := mig.Run(ctx, m.db.Database()); err != nil {
		return err
	}

	_, err = coll.InsertOne(ctx, bson.M{"name": mig.Name, "executedAt": time.Now()})
	return err
}

// AppliedMigrations lists recorded migration names.
func (m *MigrationManager) AppliedMigrations(ctx context.Context) ([]string, error) {
	cursor, err := m.db.Collection(CollectionMigrations).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Name string `bson:"name"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names, nil
}
