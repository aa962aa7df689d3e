package relations

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/tether/pkg/types"
)

// SetRelation assigns a pending value to a declared relation. The value may
// be a related record instance, a raw primary key, an attribute map, or,
// for multiple relations, a slice mixing any of those. The normalized
// value is tracked for the current cycle and mirrored into the owner's
// relation cache so reads see it before persistence.
//
// Undeclared names return ErrRelationUndeclared. In only-safe mode,
// relations the owner does not list as safe are silently ignored.
func (b *Behavior) SetRelation(name string, value any) error {
	if !b.reg.Declared(name) {
		return fmt.Errorf("%w: %s", types.ErrRelationUndeclared, name)
	}
	if b.reg.onlySafe && !b.owner.SafeAttribute(name) {
		return nil
	}
	meta, err := b.owner.RelationMeta(name)
	if err != nil {
		return err
	}
	b.arm(name, meta)
	if meta.Multiple() {
		return b.setMultiple(name, meta, value)
	}
	return b.setSingle(name, meta, value)
}

// LoadRelationsForSave bulk-assigns every declared relation present in
// data, keyed by relation name or related form name depending on the
// registry's key mode.
func (b *Behavior) LoadRelationsForSave(data map[string]any) error {
	for _, name := range b.reg.names {
		key := name
		if b.reg.keyMode == KeyModeFormName {
			meta, err := b.owner.RelationMeta(name)
			if err != nil {
				return err
			}
			key = meta.RelatedForm
		}
		value, ok := data[key]
		if !ok {
			continue
		}
		if err := b.SetRelation(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (b *Behavior) setSingle(name string, meta *types.RelationMeta, value any) error {
	var rec types.Record
	switch v := value.(type) {
	case nil:
		rec = nil
	case types.Record:
		rec = v
	default:
		normalized, err := b.normalize(name, meta, v)
		if err != nil {
			return err
		}
		rec = normalized
	}

	if rec == nil {
		b.session.newValues[name] = nil
		b.owner.PopulateRelation(name, nil)
		return nil
	}
	b.session.newValues[name] = rec
	b.owner.PopulateRelation(name, rec)
	return nil
}

func (b *Behavior) setMultiple(name string, meta *types.RelationMeta, value any) error {
	entries := collectionEntries(value)
	records := make([]types.Record, 0, len(entries))
	for _, entry := range entries {
		if rec, ok := entry.(types.Record); ok {
			records = append(records, rec)
			continue
		}
		rec, err := b.normalize(name, meta, entry)
		if err != nil {
			return err
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	b.session.newValues[name] = records
	b.owner.PopulateRelation(name, records)
	return nil
}

// collectionEntries flattens the accepted collection input shapes into a
// uniform entry slice. A nil or empty value yields an empty collection; a
// bare scalar or map is treated as a one-element collection.
func collectionEntries(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []types.Record:
		out := make([]any, len(v))
		for i, rec := range v {
			out[i] = rec
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []any{v}
	default:
		return []any{v}
	}
}

// normalize resolves a non-record assignment entry (raw key or attribute
// map) into a related record: load an existing row when key values can be
// derived, otherwise construct a new unsaved record. A configured scenario
// override is applied before attributes are populated.
func (b *Behavior) normalize(name string, meta *types.RelationMeta, data any) (types.Record, error) {
	attrs, isMap := data.(map[string]any)
	keys := b.relatedKeys(meta, data)

	var rec types.Record
	if len(keys) > 0 {
		found, err := b.owner.FindRelated(meta, keys)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("loading %s relation: %w", name, err)
		}
		rec = found
	}
	if rec == nil {
		if isMap && len(attrs) == 0 {
			return nil, nil
		}
		created, err := b.owner.NewRelated(meta)
		if err != nil {
			return nil, fmt.Errorf("creating %s relation: %w", name, err)
		}
		rec = created
	}

	if scenario, ok := b.relationScenario(name); ok {
		rec.SetScenario(scenario)
	}

	if isMap && len(attrs) > 0 {
		if loader, ok := rec.(types.RelationLoader); ok {
			if err := loader.LoadRelationsForSave(attrs); err != nil {
				return nil, fmt.Errorf("loading nested relations of %s: %w", name, err)
			}
		}
		rec.SetAttributes(attrs)
	}
	return rec, nil
}

// relatedKeys derives the candidate key attributes used to look up an
// existing related record: the related primary key columns present in the
// map, primary key columns derivable from the owner through the link for
// multiple non-junction relations, or any map entries matching the link
// columns. A raw scalar is the value of a single-column primary key.
func (b *Behavior) relatedKeys(meta *types.RelationMeta, data any) map[string]any {
	attrs, isMap := data.(map[string]any)
	if !isMap {
		if data == nil || len(meta.RelatedPrimaryKey) != 1 {
			return nil
		}
		return map[string]any{meta.RelatedPrimaryKey[0]: data}
	}

	keys := make(map[string]any, len(meta.RelatedPrimaryKey))
	for _, pkCol := range meta.RelatedPrimaryKey {
		if v, ok := attrs[pkCol]; ok {
			keys[pkCol] = v
			continue
		}
		if meta.Multiple() && !meta.Junction() {
			if ownCol, ok := meta.Link[pkCol]; ok {
				keys[pkCol] = b.owner.Get(ownCol)
				continue
			}
		}
		// One primary key column is underivable; give up on a key lookup.
		keys = nil
		break
	}

	if len(keys) == 0 {
		for _, col := range linkColumns(meta) {
			if v, ok := attrs[col]; ok {
				if keys == nil {
					keys = make(map[string]any)
				}
				keys[col] = v
			}
		}
	}
	return keys
}

// linkColumns returns the related-side columns of the effective link
// definition: the junction's related mapping for junction relations, the
// direct link otherwise.
func linkColumns(meta *types.RelationMeta) []string {
	if meta.Via != nil {
		cols := make([]string, 0, len(meta.Via.RelatedLink))
		for _, relCol := range meta.Via.RelatedLink {
			cols = append(cols, relCol)
		}
		return cols
	}
	return meta.RelatedColumns()
}
