//go:build integration

// Package testdb provides helpers for tests that run against a real
// Postgres database.
//
// Tests run inside a transaction that is rolled back when the test ends, so
// they can run in parallel without cleaning up after themselves:
//
//	func TestProviderStore(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        providers := postgres.NewPostgresProviderStore(tx, nil)
//	        ...
//	    })
//	}
//
// The database URL is read from DATABASE_URL, falling back to
// CEU_TEST_DB_URL. Tests are skipped when neither is set.
package testdb
