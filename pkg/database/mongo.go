package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"campus_chat/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoURI build connect string from config values, credentials are escaped
func MongoURI(user, password, host string, port int) string {
	u := url.URL{Scheme: "mongodb", Host: fmt.Sprintf("%s:%d", host, port)}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String()
}

// NewMongoDB connect and ping the primary, retrying RetryCount times
func NewMongoDB(ctx context.Context, c Connection, dbName string) (*MongoDB, error) {
	attempts := c.RetryCount + 1
	var err error
	for i := 1; i <= attempts; i++ {
		var client *mongo.Client
		client, err = dialMongo(ctx, c.ConnectStr)
		if err == nil {
			logger.Log.Info("mongo connected", zap.String("database", dbName), zap.Int("attempt", i))
			return &MongoDB{Client: client, Database: client.Database(dbName)}, nil
		}

		logger.Log.Warn("mongo connect failed", zap.String("database", dbName), zap.Int("attempt", i), zap.Error(err))
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect mongo: %w", ctx.Err())
		case <-time.After(c.RetryInterval):
		}
	}

	return nil, fmt.Errorf("connect mongo after %d attempts: %w", attempts, err)
}

// dialMongo 連線後 ping 一次, 失敗時釋放 client
func dialMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// Close disconnect mongo client
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
