// Package store declares the persistence contracts for every continuing
// education entity, the shared transaction helper and the errors store
// implementations return. Implementations live under internal/platform.
package store
