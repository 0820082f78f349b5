// Package database provides SQLite connectivity for Estufa Core.
//
// It opens the store with WAL and a busy timeout, applies versioned SQL
// migrations supplied through MigrationsFS, and offers WithTx so that each
// inbound broker message is persisted atomically.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive: new columns are NULLABLE or carry a DEFAULT, and
// every .up.sql file has a matching .down.sql.
package database
