package data

import (
	"context"
	"fmt"

	"go-shortlink/internal/conf"
	"go-shortlink/internal/store"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(NewData, NewClickQueue)

// Data holds the shared connections. Redis is nil when no address is
// configured.
type Data struct {
	DB    *entsql.Driver
	Redis redis.UniversalClient
}

// NewData opens and migrates the database and connects Redis.
func NewData(c conf.Data, logger *zap.Logger) (*Data, func(), error) {
	drv, err := store.Open(c.Database.Driver, c.Database.Source)
	if err != nil {
		return nil, nil, err
	}
	if err := store.RunMigrations(drv); err != nil {
		drv.Close()
		return nil, nil, err
	}

	d := &Data{DB: drv}
	if c.Redis.Addr != "" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:         c.Redis.Addr,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			DialTimeout:  c.Redis.DialTimeout.Std(),
			ReadTimeout:  c.Redis.ReadTimeout.Std(),
			WriteTimeout: c.Redis.WriteTimeout.Std(),
		})
	} else {
		logger.Warn("redis not configured, running without link cache or shared rate limits")
	}

	cleanup := func() {
		logger.Info("closing the data resources")
		if d.Redis != nil {
			if err := d.Redis.Close(); err != nil {
				logger.Error("close redis", zap.Error(err))
			}
		}
		if err := d.DB.Close(); err != nil {
			logger.Error("close database", zap.Error(err))
		}
	}
	return d, cleanup, nil
}

// PingDB reports whether the database answers.
func (d *Data) PingDB(ctx context.Context) error {
	return d.DB.DB().PingContext(ctx)
}

// PingRedis reports whether Redis answers.
func (d *Data) PingRedis(ctx context.Context) error {
	if d.Redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return d.Redis.Ping(ctx).Err()
}
