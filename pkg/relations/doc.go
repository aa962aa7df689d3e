// Package relations implements the relation-synchronization engine: it lets
// a record's related records (single, collection, or collection through a
// junction table) be assigned, validated, and persisted together with the
// record's own save, inside one logical unit of work.
//
// A Registry is parsed once per model from declarative relation
// declarations. Registry.Bind attaches a Behavior to one record; the
// Behavior tracks per-cycle state (old and pending relation values, records
// pre-saved for rollback, records pending cascade deletion) and exposes the
// lifecycle phases the record's save and delete pipelines invoke:
//
//	BeforeValidate -> owner validation -> AfterValidate -> insert/update -> AfterSave
//	BeforeDelete -> delete -> AfterDelete
//
// Each phase returns nil to continue or an error to abort the pipeline.
package relations
