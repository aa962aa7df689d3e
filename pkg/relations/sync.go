package relations

import (
	"fmt"

	"github.com/mesh-intelligence/tether/pkg/types"
)

// AfterSave is the post-save phase of the owner's save pipeline: it links,
// unlinks, and persists related records so storage matches the assigned
// relation values. The owner row is already committed when this runs, so
// failures are logged, the pre-validation rollback set is reversed
// best-effort, and the error is returned for the caller (or an enclosing
// transaction) to handle. On full success the owner is refreshed and the
// cycle state cleared.
func (b *Behavior) AfterSave() error {
	if b.session.saveStarted {
		return nil
	}
	b.session.saveStarted = true

	// Re-apply pending values: the owner's own save may have reset its
	// relation cache.
	for name, value := range b.session.newValues {
		b.owner.PopulateRelation(name, value)
	}

	for _, name := range b.reg.names {
		if _, touched := b.session.oldValues[name]; !touched {
			continue
		}
		meta, err := b.owner.RelationMeta(name)
		if err != nil {
			return b.failSync(name, err)
		}
		if meta.Multiple() {
			err = b.syncMultiple(name, meta)
		} else {
			err = b.syncSingle(name)
		}
		if err != nil {
			return b.failSync(name, err)
		}
		delete(b.session.oldValues, name)
		delete(b.session.newValues, name)
	}

	b.session.savedSingles = nil
	if err := b.owner.Refresh(); err != nil {
		return b.failSync("", fmt.Errorf("refreshing owner: %w", err))
	}
	b.session.saveStarted = false
	return nil
}

// failSync logs a post-save failure, reverses the pre-validation rollback
// set, and wraps the error for the caller.
func (b *Behavior) failSync(name string, err error) error {
	b.log.Warn("relation synchronization failed",
		"model", b.owner.ModelName(), "relation", name, "error", err)
	b.rollbackSavedSingles()
	if name == "" {
		return err
	}
	return fmt.Errorf("synchronizing relation %s: %w", name, err)
}

// syncMultiple persists and links a collection relation. New members are
// saved first when the relation needs their key for a junction row, then
// linked; existing members with modified attributes are saved in place.
// The old and current key sets are then diffed: members only in the old
// set are unlinked, members only in the current set are linked. When
// junction extra columns are configured the whole collection is unlinked
// and relinked so changed column values are rewritten.
func (b *Behavior) syncMultiple(name string, meta *types.RelationMeta) error {
	old, _ := b.session.oldValues[name].([]types.Record)
	current, _ := b.owner.Relation(name).([]types.Record)

	existing := make([]types.Record, 0, len(current))
	for i, rec := range current {
		label := fmt.Sprintf("%s #%d", b.owner.RelationLabel(name), i+1)
		if rec.IsNew() {
			if meta.Junction() {
				if err := rec.Save(); err != nil {
					b.owner.AddError(name, fmt.Sprintf("%s could not be saved: %s", label, err))
					return fmt.Errorf("saving new related record: %w", err)
				}
			}
			extra, err := b.extraColumnValues(name, rec)
			if err != nil {
				return err
			}
			if err := b.owner.Link(name, rec, extra); err != nil {
				b.owner.AddError(name, fmt.Sprintf("%s could not be linked: %s", label, err))
				return fmt.Errorf("linking new related record: %w", err)
			}
			continue
		}
		existing = append(existing, rec)
		if len(rec.DirtyAttributes()) > 0 {
			if err := rec.Save(); err != nil {
				b.owner.AddError(name, fmt.Sprintf("%s could not be saved: %s", label, err))
				return fmt.Errorf("saving related record: %w", err)
			}
		}
	}

	forceRelink := b.reg.HasExtraColumns(name)
	added, removed := diffTokens(old, existing, forceRelink)

	oldIndex := indexByToken(old)
	for _, token := range removed {
		rec, ok := oldIndex[token]
		if !ok {
			continue
		}
		if err := b.owner.Unlink(name, rec, true); err != nil {
			return fmt.Errorf("unlinking related record: %w", err)
		}
	}

	currentIndex := indexByToken(current)
	for _, token := range added {
		rec, ok := currentIndex[token]
		if !ok {
			continue
		}
		extra, err := b.extraColumnValues(name, rec)
		if err != nil {
			return err
		}
		if err := b.owner.Link(name, rec, extra); err != nil {
			return fmt.Errorf("linking related record: %w", err)
		}
	}
	return nil
}

// syncSingle links or unlinks a single relation when its value changed,
// then saves the current record to flush attribute changes made by the
// linking step.
func (b *Behavior) syncSingle(name string) error {
	oldRec, _ := b.session.oldValues[name].(types.Record)
	current, _ := b.owner.Relation(name).(types.Record)

	if !sameRecord(oldRec, current) {
		if current != nil {
			if err := b.owner.Link(name, current, nil); err != nil {
				return fmt.Errorf("linking related record: %w", err)
			}
		} else if oldRec != nil {
			if err := b.owner.Unlink(name, oldRec, false); err != nil {
				return fmt.Errorf("unlinking related record: %w", err)
			}
		}
	}

	if current != nil {
		if err := current.Save(); err != nil {
			return fmt.Errorf("saving related record: %w", err)
		}
	}
	return nil
}

// extraColumnValues resolves the configured junction extra-column provider
// for one related record. A provider that does not yield a column map is a
// configuration error surfaced at link time.
func (b *Behavior) extraColumnValues(name string, rec types.Record) (map[string]any, error) {
	provider, ok := b.reg.extraColumns[name]
	if !ok {
		return nil, nil
	}
	switch p := provider.(type) {
	case map[string]any:
		return p, nil
	case ExtraColumnsFunc:
		return p(rec), nil
	case func(types.Record) map[string]any:
		return p(rec), nil
	case func(types.Record) any:
		result := p(rec)
		m, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: relation %s", types.ErrExtraColumns, name)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: relation %s", types.ErrExtraColumns, name)
	}
}

// diffTokens computes the added and removed key tokens between the old and
// current collections. With force set, every old token is treated as
// removed and every current token as added.
func diffTokens(old, current []types.Record, force bool) (added, removed []string) {
	oldTokens := recordTokens(old)
	currentTokens := recordTokens(current)
	if force {
		return currentTokens, oldTokens
	}
	oldSet := make(map[string]bool, len(oldTokens))
	for _, t := range oldTokens {
		oldSet[t] = true
	}
	currentSet := make(map[string]bool, len(currentTokens))
	for _, t := range currentTokens {
		currentSet[t] = true
	}
	for _, t := range currentTokens {
		if !oldSet[t] {
			added = append(added, t)
		}
	}
	for _, t := range oldTokens {
		if !currentSet[t] {
			removed = append(removed, t)
		}
	}
	return added, removed
}

// recordTokens returns the key tokens of all records that have a fully
// assigned primary key, preserving order.
func recordTokens(records []types.Record) []string {
	tokens := make([]string, 0, len(records))
	for _, rec := range records {
		if t := pkToken(rec); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// indexByToken indexes records by their key token, skipping records
// without one.
func indexByToken(records []types.Record) map[string]types.Record {
	index := make(map[string]types.Record, len(records))
	for _, rec := range records {
		if t := pkToken(rec); t != "" {
			index[t] = rec
		}
	}
	return index
}
