// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mongo provides a managed MongoDB client for the document-store driver.

When STORE_DRIVER=mongo, accounts and verification records live in two
collections of one database. Indexes (unique keys and the verification TTL)
are declared by the repositories that own each collection.
*/
package mongo

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client settings for the auth workload.
const (
	connectTimeout = 5 * time.Second
	pingTimeout    = 2 * time.Second
	maxPoolSize    = 20
)

// NewClient connects to MongoDB and returns the client plus the named database.
//
// # Parameters
//   - context: Context for the initial ping.
//   - uri: mongodb:// or mongodb+srv:// connection string.
//   - database: Database name holding the FacultyEval collections.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, uri, database string, logger *slog.Logger) (*mongo.Client, *mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetMaxPoolSize(maxPoolSize)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: failed to create client: %w", err)
	}

	// Validate connectivity immediately at startup.
	if err := Ping(context, client); err != nil {
		_ = client.Disconnect(context)
		return nil, nil, err
	}

	logger.Info("mongo_client_connected", slog.String("database", database))

	return client, client.Database(database), nil
}

// Ping verifies that the primary is reachable.
func Ping(context stdctx.Context, client *mongo.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping failed: %w", err)
	}

	return nil
}
