package pgstore

import "embed"

// Migrations holds the goose migrations creating the tasks table.
// Apply them with pg.Migrate(ctx, pool, pgstore.Migrations, "migrations", cfg, log).
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that holds the files
const MigrationsDir = "migrations"
