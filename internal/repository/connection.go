package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOptions tunes the cart store connection. Zero fields take the
// defaults below.
type MongoOptions struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
}

const (
	defaultMongoConnectTimeout = 10 * time.Second
	defaultMongoPingTimeout    = 5 * time.Second
	defaultMongoMaxPool        = 50
	defaultMongoMinPool        = 5
)

func (o MongoOptions) withDefaults() MongoOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultMongoConnectTimeout
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = defaultMongoPingTimeout
	}
	if o.MaxPoolSize == 0 {
		o.MaxPoolSize = defaultMongoMaxPool
	}
	if o.MinPoolSize > o.MaxPoolSize {
		o.MinPoolSize = o.MaxPoolSize
	}
	if o.MinPoolSize == 0 {
		o.MinPoolSize = min(defaultMongoMinPool, o.MaxPoolSize)
	}
	return o
}

// ConnectMongoDB opens the cart database and checks it answers a ping. The
// client is disconnected again when the ping fails.
func ConnectMongoDB(ctx context.Context, opts MongoOptions) (*mongo.Database, error) {
	if opts.Database == "" {
		return nil, fmt.Errorf("mongo database name is required")
	}
	opts = opts.withDefaults()

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.PingTimeout).
		SetMaxPoolSize(opts.MaxPoolSize).
		SetMinPoolSize(opts.MinPoolSize)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(opts.Database), nil
}

// DisconnectMongoDB closes the client behind db.
func DisconnectMongoDB(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return nil
	}
	if err := db.Client().Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	return nil
}
