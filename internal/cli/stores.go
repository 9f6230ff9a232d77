package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lifesync/lifesync/internal/config"
	"github.com/lifesync/lifesync/internal/database"
	"github.com/lifesync/lifesync/internal/kv"
)

// openStores opens the database and the configured key-value backend. The
// returned close function releases both.
func openStores(ctx context.Context, cfg config.Config) (*sql.DB, kv.Store, func(), error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.RedisAddr == "" {
		return db, kv.NewSQLite(db), func() { db.Close() }, nil
	}

	rdb, err := kv.NewRedis(ctx, kv.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return db, rdb, func() {
		rdb.Close()
		db.Close()
	}, nil
}
