// Package migrations embeds the schema migrations for each supported dialect.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite/*.sql in golang-migrate naming.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
