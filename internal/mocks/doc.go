// Package mocks provides in-memory implementations of the store interfaces
// and of the outbound collaborators (email sender, transactor) for use in
// service, task and API tests.
//
// The in-memory stores enforce the same uniqueness rules as the Postgres
// schema, so race-sensitive code such as certificate issuance can be
// exercised concurrently without a database.
package mocks
