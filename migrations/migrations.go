// Package migrations embeds the SQL schema files into the binary.
// Applied in lexical order by store.PostgresStore.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
