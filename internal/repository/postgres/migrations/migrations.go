// Package migrations embeds the goose SQL migrations for the Postgres
// adapter. The files are applied in order at startup by postgres.New.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
