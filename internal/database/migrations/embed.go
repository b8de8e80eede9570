// Package migrations embeds the goose SQL migrations for the accounts and
// reset-code tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
