package main

import (
	"context"
	dbsql "database/sql"
	"fmt"
	"time"

	"github.com/rteval/parserd/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// openDB dials the submission database and verifies it is reachable.
// An unreachable database at startup is an initialisation failure.
func openDB(cfg config.Database) (*bun.DB, error) {
	opts := []pgdriver.Option{
		pgdriver.WithAddr(cfg.Addr()),
		pgdriver.WithDatabase(cfg.Name),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithApplicationName("rteval-parserd"),
	}
	if cfg.SSLMode == "disable" {
		opts = append(opts, pgdriver.WithInsecure(true))
	}
	sqldb := dbsql.OpenDB(pgdriver.NewConnector(opts...))
	db := bun.NewDB(sqldb, pgdialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Addr(), err)
	}
	return db, nil
}
