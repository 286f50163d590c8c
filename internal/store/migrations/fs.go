// Package migrations embeds the gateway schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
