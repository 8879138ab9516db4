// Package migrations embeds the SQL schema migrations for the engine.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
