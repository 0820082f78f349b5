// Package migrations embeds the Estufa schema migrations into the binary.
//
// Importing this package for its side effect registers the embedded files
// with the database package, so the bridge can migrate a fresh SQLite file
// without any SQL present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/estufa-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
