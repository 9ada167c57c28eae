// Package pg connects to PostgreSQL through a pgx pool and applies goose
// migrations from an embedded filesystem.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, ".", cfg, slog.Default()); err != nil {
//		return err
//	}
//
// Connection failures and migration failures are joined with this package's
// sentinel errors, so callers match them with errors.Is.
package pg
