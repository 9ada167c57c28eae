// Package pgstore implements queue.Store on a PostgreSQL table.
//
// The schema ships as an embedded goose migration:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//	store, err := pgstore.New(pool)
//
// ClaimNext is one UPDATE whose target row is chosen with
// FOR UPDATE SKIP LOCKED, so concurrent workers never claim the same task
// and never block on each other. Status changes made by Update are guarded
// in the WHERE clause, which makes them conditional on the lifecycle.
package pgstore
