// Package migrations embeds the per-dialect schema files.
package migrations

import "embed"

// FS holds one directory per dialect: sqlite, postgres, mysql.
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
