// Package types defines the Record contract, relation metadata, backend
// configuration, and standard errors for the tether relation-persistence
// system.
//
// The relation engine in pkg/relations operates purely against these
// contracts; internal/activerecord provides the SQLite-backed
// implementation.
package types
