// Package store defines interfaces for job persistence and queueing.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing the submitter, the dispatch loop
// and the workers to remain independent of specific database technologies.
//
// Implementations live under internal/platform (postgres, sqlite, memory).
package store
