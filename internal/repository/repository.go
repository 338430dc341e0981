package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/resolveit/escalation-monitor/internal/config"
)

//go:embed schema.sql
var schema string

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

// Migrate 建表语句都是 IF NOT EXISTS，可以重复执行
func (r *Repository) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, schema)
	return err
}
