package relations

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mesh-intelligence/tether/pkg/types"
)

// session holds the mutable state of one save or delete cycle. It is owned
// by a single Behavior and never shared across owner records.
type session struct {
	// oldValues maps each touched relation to its pre-cycle value. An
	// entry is armed at most once per cycle; its presence is the touched
	// marker. Successful synchronization removes the entry.
	oldValues map[string]any

	// newValues maps each touched relation to its most recently assigned
	// value.
	newValues map[string]any

	// savedSingles are records persisted during pre-validation so their
	// keys become available; they are deleted again when the cycle fails.
	savedSingles []types.Record

	// pendingDelete is the cascade-delete snapshot taken before the owner
	// row is removed, consumed after it.
	pendingDelete []types.Record

	// saveStarted guards against re-entrant post-save synchronization when
	// a related record's own save cascades back into the owner's pipeline.
	saveStarted bool
}

// Behavior is the per-record relation synchronization engine. One Behavior
// serves one owner record; its session state is scoped to a single save or
// delete cycle.
type Behavior struct {
	reg       *Registry
	owner     types.Record
	log       *slog.Logger
	session   session
	scenarios map[string]string // per-record scenario overrides
}

// Owner returns the record this Behavior is bound to.
func (b *Behavior) Owner() types.Record {
	return b.owner
}

// Relations returns the declared relation names in save order.
func (b *Behavior) Relations() []string {
	return b.reg.Names()
}

// arm captures the relation's pre-cycle value on first touch. For an
// unsaved owner the old value is an empty collection or nil; otherwise it
// is the currently loaded value. Subsequent calls in the same cycle are
// no-ops.
func (b *Behavior) arm(name string, meta *types.RelationMeta) {
	if _, ok := b.session.oldValues[name]; ok {
		return
	}
	if b.owner.IsNew() {
		if meta.Multiple() {
			b.session.oldValues[name] = []types.Record{}
		} else {
			b.session.oldValues[name] = nil
		}
		return
	}
	b.session.oldValues[name] = b.owner.Relation(name)
}

// MarkRelationDirty force-arms a relation's old-value capture without an
// assignment. Returns false if the relation is undeclared or already armed
// this cycle.
func (b *Behavior) MarkRelationDirty(name string) bool {
	if !b.reg.Declared(name) {
		return false
	}
	if _, ok := b.session.oldValues[name]; ok {
		return false
	}
	b.session.oldValues[name] = b.owner.Relation(name)
	return true
}

// OldRelations returns every declared relation mapped to its pre-cycle
// value; untouched relations map to their current value.
func (b *Behavior) OldRelations() map[string]any {
	out := make(map[string]any, len(b.reg.names))
	for _, name := range b.reg.names {
		out[name] = b.OldRelation(name)
	}
	return out
}

// OldRelation returns one relation's pre-cycle value, or its current value
// if it was not touched this cycle.
func (b *Behavior) OldRelation(name string) any {
	if v, ok := b.session.oldValues[name]; ok {
		return v
	}
	return b.owner.Relation(name)
}

// DirtyRelations returns the touched relations mapped to their current
// values.
func (b *Behavior) DirtyRelations() map[string]any {
	out := make(map[string]any, len(b.session.oldValues))
	for name := range b.session.oldValues {
		out[name] = b.owner.Relation(name)
	}
	return out
}

// SetRelationScenario overrides the validation scenario applied to records
// of one relation for this owner. Returns ErrRelationUndeclared for
// undeclared names.
func (b *Behavior) SetRelationScenario(name, scenario string) error {
	if !b.reg.Declared(name) {
		return fmt.Errorf("%w: %s", types.ErrRelationUndeclared, name)
	}
	if b.scenarios == nil {
		b.scenarios = make(map[string]string)
	}
	b.scenarios[name] = scenario
	return nil
}

// relationScenario returns the effective scenario override for a relation.
func (b *Behavior) relationScenario(name string) (string, bool) {
	if s, ok := b.scenarios[name]; ok {
		return s, true
	}
	s, ok := b.reg.scenarios[name]
	return s, ok
}

// rollbackSavedSingles deletes every record persisted during
// pre-validation this cycle. Deletion failures are logged and skipped so
// the remaining records still get cleaned up.
func (b *Behavior) rollbackSavedSingles() {
	for _, rec := range b.session.savedSingles {
		if err := rec.Delete(); err != nil {
			b.log.Warn("rollback of pre-saved related record failed",
				"model", rec.ModelName(), "error", err)
		}
	}
	b.session.savedSingles = nil
}

// pkToken builds the diff identity token of a record: its primary key
// values joined in column order. Returns "" while any key column is
// unassigned.
func pkToken(rec types.Record) string {
	pk := rec.PrimaryKey()
	cols := rec.PrimaryKeyColumns()
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		v, ok := pk[col]
		if !ok || v == nil {
			return ""
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "-")
}

// sameRecord reports whether two relation values identify the same row:
// the same instance, or the same model with equal assigned primary keys.
func sameRecord(a, c types.Record) bool {
	if a == nil || c == nil {
		return a == nil && c == nil
	}
	if a == c {
		return true
	}
	if a.ModelName() != c.ModelName() {
		return false
	}
	token := pkToken(a)
	return token != "" && token == pkToken(c)
}
