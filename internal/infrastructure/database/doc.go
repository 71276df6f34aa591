// Package database opens and migrates the bridge's SQLite store.
//
// The store holds the device catalogue, fleet event history and pending
// provisioning requests. A single writer connection with WAL mode and a
// busy timeout is enough for the write rates a signage fleet produces,
// and keeps the bridge deployable as one binary with one file on disk.
//
// Foreign keys are switched on at the connection level: event rows
// reference device rows, and repositories rely on the constraint.
// The database file is created 0600 under a 0750 directory because it
// carries device credentials.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations live in the migrations package as embedded SQL files named
// YYYYMMDD_HHMMSS_description.{up,down}.sql and are applied in version
// order, each in its own transaction. MigrateDown reverts the most
// recent one and backs the bridge's -rollback flag.
package database
