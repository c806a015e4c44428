package data

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultConnectTimeout = 10 * time.Second

// NewMongoClient 连接 MongoDB 并执行一次 Ping。
func NewMongoClient(ctx context.Context, c configloader.MongoConfig, logger log.Logger) (*mongo.Client, func(), error) {
	helper := log.NewHelper(logger)

	timeout := c.ConnectTimeout.Duration
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().ApplyURI(c.URI).SetConnectTimeout(timeout)
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	helper.Infof("mongo client connected: database=%s", c.Database)

	cleanup := func() {
		helper.Info("closing mongo client")
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			helper.Warnf("mongo disconnect: %v", err)
		}
	}
	return client, cleanup, nil
}
