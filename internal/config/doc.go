// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config file and ASRQ_-prefixed environment
// variables. It provides type-safe access to the settings needed by the
// store, queue, worker pool, recognizer and API while keeping configuration
// details separate from business logic.
package config
