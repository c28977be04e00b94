// Package database owns the connection pool to the ledger's SQLite file. It
// creates the data directory, opens the file with WAL journaling, NORMAL
// synchronous mode and a bounded busy timeout, runs the schema migrations and
// hands the resulting pool to the rest of the application. Table-specific
// queries live in their own packages and receive the pool as a dependency.
package database
