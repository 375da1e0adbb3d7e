// Package migrations embeds the entity store's SQL migration files into the
// binary so the mapper can migrate without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
