package main

import (
	"context"
	"fmt"

	"github.com/jonathan/resume-tailor/internal/db"
)

// openStore connects to the configured store alone, for commands that only
// read or write records
func openStore(ctx context.Context) (db.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := db.Open(ctx, cfg.Store.Driver, cfg.Store.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	return store, nil
}
