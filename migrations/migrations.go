// Package migrations embeds the card journal schema for goose.
//
// Files follow the goose naming convention YYYYMMDDHHMMSS_description.sql
// and are applied in order by storage.DB.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
