package relations

import (
	"fmt"

	"github.com/mesh-intelligence/tether/pkg/types"
)

// BeforeDelete snapshots the current related records of every
// cascade-flagged relation into the pending-deletion set. Nothing is
// deleted yet; the owner's own row must be removed first.
func (b *Behavior) BeforeDelete() error {
	for _, name := range b.reg.names {
		if !b.reg.CascadeDelete(name) {
			continue
		}
		meta, err := b.owner.RelationMeta(name)
		if err != nil {
			return err
		}
		value := b.owner.Relation(name)
		if meta.Multiple() {
			records, _ := value.([]types.Record)
			b.session.pendingDelete = append(b.session.pendingDelete, records...)
			continue
		}
		if rec, ok := value.(types.Record); ok && rec != nil {
			b.session.pendingDelete = append(b.session.pendingDelete, rec)
		}
	}
	return nil
}

// AfterDelete deletes every record collected by BeforeDelete, then clears
// the set. The owner row is already gone when this runs, so a failure is
// logged and re-raised after the defensive rollback-set cleanup.
func (b *Behavior) AfterDelete() error {
	for _, rec := range b.session.pendingDelete {
		if err := rec.Delete(); err != nil {
			b.log.Warn("cascade delete failed",
				"model", b.owner.ModelName(), "related", rec.ModelName(), "error", err)
			b.rollbackSavedSingles()
			return fmt.Errorf("cascade deleting %s record: %w", rec.ModelName(), err)
		}
	}
	b.session.pendingDelete = nil
	return nil
}
