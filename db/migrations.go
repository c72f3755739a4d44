// Package db embeds the SQL schema migrations applied by store.Migrate.
package db

import "embed"

// Migrations holds the goose-annotated SQL files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads from.
const MigrationsDir = "migrations"
