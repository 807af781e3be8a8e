// Package task runs background work that must survive restarts.
//
// Tasks are persisted before they run. The runner claims each row atomically
// before executing it, retries failures up to a configured number of attempts,
// and polls the store for rows written by other processes or inside a
// committed transaction (the certificate notification outbox). The Scheduler
// drives the periodic lifecycle and compliance sweep.
package task
