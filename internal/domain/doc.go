// Package domain contains the core entities of the recognition service: the
// job record and its status state machine. It is independent of any storage
// backend or delivery mechanism.
package domain
