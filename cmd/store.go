package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "salewatch.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// resolveBrands returns the brand named by idOrSlug, or every active brand
// when idOrSlug is empty.
func resolveBrands(ctx context.Context, st store.Store, idOrSlug string) ([]model.Brand, error) {
	if idOrSlug != "" {
		b, err := st.GetBrand(ctx, idOrSlug)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve brand %s", idOrSlug)
		}
		return []model.Brand{*b}, nil
	}
	return st.ListBrands(ctx, true)
}
