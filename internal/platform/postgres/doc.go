// Package postgres provides PostgreSQL-specific implementations of the job
// store and job queue interfaces defined in the internal/store package.
// It handles the details of query execution, row locking for concurrent
// consumers, and data mapping between domain entities and database records.
package postgres
