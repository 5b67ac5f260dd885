package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/greenreach/internal/fetcher"
	"github.com/sells-group/greenreach/internal/store"
)

// initStore opens the configured store and brings its schema up to date.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, poolConfig())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newResolver resolves input sources, downloading remote ones into the
// configured cache directory.
func newResolver() *fetcher.Resolver {
	return fetcher.NewResolver(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), cfg.Input.CacheDir)
}

func poolConfig() *store.PoolConfig {
	return &store.PoolConfig{
		MaxConns: cfg.Store.Pool.MaxConns,
		MinConns: cfg.Store.Pool.MinConns,
		SRID:     cfg.Store.Pool.SRID,
	}
}
