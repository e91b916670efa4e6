package db

import "embed"

// migrationsFS holds the versioned schema. Files are applied in order by goose.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
