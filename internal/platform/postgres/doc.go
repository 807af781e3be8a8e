// Package postgres provides the PostgreSQL implementations of the store
// interfaces in internal/store, the task store used by the background runner
// and the embedded goose migrations that create the schema, applied through
// Migrate on a pool obtained from Open. Every store
// accepts a store.DBTX so that it runs equally on a pool or inside a
// transaction obtained through WithTx.
package postgres
