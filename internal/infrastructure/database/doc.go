// Package database provides SQLite connectivity for the mapper's entity store.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations from an fs.FS (embedded by the migrations package)
//   - Connection lifecycle and health checks
//
// The store only holds the registered entities (topic id to external id
// mappings). In-flight operations are never persisted.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql. There are
// no down migrations. New columns must be nullable or carry a default.
package database
