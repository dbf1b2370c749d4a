package migrations

import "github.com/uptrace/bun/migrate"

// DbMigrations - registry of schema migrations applied on start
var DbMigrations = migrate.NewMigrations()
