package relations

import (
	"fmt"

	"github.com/mesh-intelligence/tether/pkg/types"
)

// BeforeValidate is the pre-validation phase of the owner's save pipeline.
// It validates every dirty or new related record of the touched relations,
// eagerly persists new single-relation records whose key the owner must
// copy, and aborts the pipeline when anything fails. Skipped entirely when
// no relation was touched this cycle or when a save is already in
// progress.
func (b *Behavior) BeforeValidate() error {
	if len(b.session.oldValues) == 0 || b.session.saveStarted {
		return nil
	}

	failed := false
	for _, name := range b.reg.names {
		if _, touched := b.session.oldValues[name]; !touched {
			continue
		}
		meta, err := b.owner.RelationMeta(name)
		if err != nil {
			return err
		}
		if meta.Multiple() {
			if !b.prepareMultiple(name) {
				failed = true
			}
			continue
		}
		if !b.prepareSingle(name, meta, !failed) {
			failed = true
		}
	}

	if failed {
		b.rollbackSavedSingles()
		b.owner.AddError(b.owner.FormName(), "related records could not be saved")
		return types.ErrValidationFailed
	}
	return nil
}

// prepareMultiple validates every new or modified record of a collection
// relation, attaching indexed errors to the owner.
func (b *Behavior) prepareMultiple(name string) bool {
	records, _ := b.owner.Relation(name).([]types.Record)
	ok := true
	for i, rec := range records {
		label := fmt.Sprintf("%s #%d", b.owner.RelationLabel(name), i+1)
		if !b.validateRelated(name, label, rec) {
			ok = false
		}
	}
	return ok
}

// prepareSingle validates a single relation's record and, when the owner
// must copy the related record's key onto its own foreign key columns,
// persists the still-new record now so the key exists. Records saved here
// join the rollback set.
func (b *Behavior) prepareSingle(name string, meta *types.RelationMeta, validSoFar bool) bool {
	rec, _ := b.owner.Relation(name).(types.Record)
	if rec == nil {
		return true
	}
	label := b.owner.RelationLabel(name)
	if !b.validateRelated(name, label, rec) {
		return false
	}
	if !validSoFar {
		return true
	}
	if rec.IsNew() && ownerHoldsForeignKey(b.owner, rec, meta) {
		if err := rec.Save(); err != nil {
			b.owner.AddError(name, fmt.Sprintf("%s could not be saved: %s", label, err))
			return false
		}
		b.session.savedSingles = append(b.session.savedSingles, rec)
	}
	return true
}

// validateRelated validates one related record when it is new or has
// modified attributes, copying its errors onto the owner prefixed with the
// relation label.
func (b *Behavior) validateRelated(name, label string, rec types.Record) bool {
	if rec == nil {
		return true
	}
	if !rec.IsNew() && len(rec.DirtyAttributes()) == 0 {
		return true
	}
	if rec.Validate() {
		return true
	}
	for _, messages := range rec.Errors() {
		for _, msg := range messages {
			b.owner.AddError(name, label+": "+msg)
		}
	}
	return false
}

// AfterValidate runs once the owner's own field validation has completed.
// For every touched single relation whose link direction requires the
// owner to hold the foreign key, the related record's key attributes are
// copied onto the owner, persisting the related record first if it is
// still new.
func (b *Behavior) AfterValidate() error {
	if len(b.session.oldValues) == 0 || b.session.saveStarted {
		return nil
	}
	for _, name := range b.reg.names {
		if _, touched := b.session.oldValues[name]; !touched {
			continue
		}
		meta, err := b.owner.RelationMeta(name)
		if err != nil {
			return err
		}
		if meta.Multiple() {
			continue
		}
		rec, _ := b.owner.Relation(name).(types.Record)
		if rec == nil || !ownerHoldsForeignKey(b.owner, rec, meta) {
			continue
		}
		if rec.IsNew() {
			if err := rec.Save(); err != nil {
				b.rollbackSavedSingles()
				b.owner.AddError(b.owner.FormName(), err.Error())
				return fmt.Errorf("saving %s relation: %w", name, err)
			}
			b.session.savedSingles = append(b.session.savedSingles, rec)
		}
		for relCol, ownCol := range meta.Link {
			b.owner.Set(ownCol, rec.Get(relCol))
		}
	}
	return nil
}

// ownerHoldsForeignKey reports whether the owner record carries the
// relation's foreign key columns: the related side of the link is the
// related record's primary key while the owner side is not the owner's.
// In that direction the related record must be persisted first so its key
// can be copied onto the owner.
func ownerHoldsForeignKey(owner, related types.Record, meta *types.RelationMeta) bool {
	if meta.Junction() || len(meta.Link) == 0 {
		return false
	}
	return related.IsPrimaryKey(meta.RelatedColumns()) && !owner.IsPrimaryKey(meta.OwnerColumns())
}
