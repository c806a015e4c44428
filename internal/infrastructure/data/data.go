// Package data 按配置选择文档存储与标记存储后端，并统一管理连接的生命周期。
package data

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

// Data 持有已选定的存储后端与就绪检查。
type Data struct {
	Store   docstore.Store
	Markers repositories.MarkerStore

	driver  string
	checks  map[string]func(context.Context) error
	cleanup []func()
}

// NewData 根据 data.driver / data.markers 构造后端，返回的 cleanup 逆序关闭所有连接。
func NewData(ctx context.Context, cfg configloader.DataConfig, txCfg txmanager.Config, logger log.Logger) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	d := &Data{driver: cfg.Driver, checks: make(map[string]func(context.Context) error)}

	fail := func(err error) (*Data, func(), error) {
		d.close()
		return nil, nil, err
	}

	switch cfg.Driver {
	case configloader.DriverPostgres:
		pool, cleanup, err := database.NewPgxPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return fail(err)
		}
		d.cleanup = append(d.cleanup, cleanup)
		tx, err := database.NewTxManager(pool, txCfg, logger)
		if err != nil {
			return fail(err)
		}
		d.Store = repositories.NewPostgresDocumentStore(pool, tx, logger)
		d.checks["postgres"] = pool.Ping
	case configloader.DriverMongo:
		client, cleanup, err := NewMongoClient(ctx, cfg.Mongo, logger)
		if err != nil {
			return fail(err)
		}
		d.cleanup = append(d.cleanup, cleanup)
		db := client.Database(cfg.Mongo.Database)
		if err := repositories.EnsureMongoIndexes(ctx, db); err != nil {
			return fail(err)
		}
		d.Store = repositories.NewMongoDocumentStore(db, logger)
		d.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	default:
		helper.Warn("using in-memory document store; data is lost on restart")
		d.Store = docstore.NewMemory()
	}

	switch cfg.Markers {
	case configloader.MarkersRedis:
		client, cleanup, err := NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fail(err)
		}
		d.cleanup = append(d.cleanup, cleanup)
		markers := repositories.NewRedisMarkerStore(client, logger)
		d.Markers = markers
		d.checks["redis"] = markers.Ping
	default:
		d.Markers = repositories.NewMemoryMarkerStore()
	}

	helper.Infof("data layer ready: driver=%s markers=%s", cfg.Driver, cfg.Markers)
	return d, func() {
		helper.Info("closing the data resources")
		d.close()
	}, nil
}

// Ready 依次检查各外部后端的连通性，供 /readyz 使用。
func (d *Data) Ready(ctx context.Context) error {
	for name, check := range d.checks {
		if err := check(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}
	return nil
}

// Driver 返回当前文档存储驱动名。
func (d *Data) Driver() string { return d.driver }

func (d *Data) close() {
	for i := len(d.cleanup) - 1; i >= 0; i-- {
		d.cleanup[i]()
	}
	d.cleanup = nil
}

// ProvideDocumentStore 暴露选定的文档存储。
func ProvideDocumentStore(d *Data) docstore.Store { return d.Store }

// ProvideMarkerStore 暴露选定的标记存储。
func ProvideMarkerStore(d *Data) repositories.MarkerStore { return d.Markers }
