// Package store defines the persistence interface for generation progress
// records. Implementations live under internal/storage; this package must not
// import database drivers or concrete clients.
package store
