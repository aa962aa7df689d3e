// Package activerecord provides the SQLite-backed record layer: declarative
// model definitions, a backend that owns the database handle and the model
// catalog, and records implementing the types.Record contract with the full
// save and delete pipelines wired to the relation engine.
package activerecord
