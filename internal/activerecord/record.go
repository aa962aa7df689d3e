package activerecord

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/tether/pkg/relations"
	"github.com/mesh-intelligence/tether/pkg/types"
)

// Record is one row of a registered model. It tracks attribute changes since
// load, validates against the model's rules, and runs the full relation-aware
// save and delete pipelines.
type Record struct {
	backend  *Backend
	model    *Model
	attrs    map[string]any
	oldAttrs map[string]any
	related  map[string]any
	errs     map[string][]string
	scenario string
	isNew    bool
	behavior *relations.Behavior
}

var (
	_ types.Record         = (*Record)(nil)
	_ types.RelationLoader = (*Record)(nil)
)

// ModelName returns the record's model identifier.
func (r *Record) ModelName() string { return r.model.Name }

// FormName returns the model's form-scoped key.
func (r *Record) FormName() string { return r.model.Form }

// IsNew reports whether the record has not been persisted yet.
func (r *Record) IsNew() bool { return r.isNew }

// Behavior returns the relation engine bound to this record, nil when the
// model saves no relations.
func (r *Record) Behavior() *relations.Behavior { return r.behavior }

// PrimaryKey returns the primary key columns that currently have a value.
func (r *Record) PrimaryKey() map[string]any {
	pk := make(map[string]any, len(r.model.PrimaryKey))
	for _, col := range r.model.PrimaryKey {
		if v := r.attrs[col]; v != nil {
			pk[col] = v
		}
	}
	return pk
}

// PrimaryKeyColumns returns the primary key column names in order.
func (r *Record) PrimaryKeyColumns() []string {
	cols := make([]string, len(r.model.PrimaryKey))
	copy(cols, r.model.PrimaryKey)
	return cols
}

// IsPrimaryKey reports whether columns is exactly the primary key set.
func (r *Record) IsPrimaryKey(columns []string) bool {
	return r.model.isPrimaryKey(columns)
}

// Attributes returns a copy of the record's current attribute values.
func (r *Record) Attributes() map[string]any {
	return snapshot(r.attrs)
}

// Get returns the value of an attribute, nil if unset or unknown.
func (r *Record) Get(attribute string) any {
	return r.attrs[attribute]
}

// Set assigns one attribute, coercing the value to the column's canonical
// type. Unknown attributes are ignored.
func (r *Record) Set(attribute string, value any) {
	col := r.model.column(attribute)
	if col == nil {
		return
	}
	if value == nil {
		r.attrs[attribute] = nil
		return
	}
	r.attrs[attribute] = normalizeValue(col.Type, value)
}

// SetAttributes mass-assigns column values, honoring the model's safe list.
func (r *Record) SetAttributes(values map[string]any) {
	for _, col := range r.model.Columns {
		v, ok := values[col.Name]
		if !ok || !r.SafeAttribute(col.Name) {
			continue
		}
		r.Set(col.Name, v)
	}
}

// DirtyAttributes returns the attributes changed since load. For a new
// record every assigned attribute is dirty.
func (r *Record) DirtyAttributes() map[string]any {
	dirty := make(map[string]any)
	for name, v := range r.attrs {
		if r.isNew {
			if v != nil {
				dirty[name] = v
			}
			continue
		}
		if !valuesEqual(v, r.oldAttrs[name]) {
			dirty[name] = v
		}
	}
	return dirty
}

// Validate runs the model's rules for the active scenario. Previous errors
// are cleared first.
func (r *Record) Validate() bool {
	r.ClearErrors()
	for _, rule := range r.model.Rules {
		if !rule.appliesTo(r.scenario) {
			continue
		}
		for _, attr := range rule.Attributes {
			r.applyRule(rule, attr)
		}
	}
	return !r.HasErrors()
}

// applyRule checks one rule against one attribute, attaching an error
// message on violation.
func (r *Record) applyRule(rule Rule, attr string) {
	value := r.attrs[attr]
	label := r.model.label(attr)
	switch rule.Kind {
	case RuleRequired:
		if value == nil {
			r.AddError(attr, label+" cannot be blank")
			return
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			r.AddError(attr, label+" cannot be blank")
		}
	case RuleLength:
		s, ok := value.(string)
		if !ok {
			return
		}
		if rule.Min > 0 && len(s) < int(rule.Min) {
			r.AddError(attr, fmt.Sprintf("%s should contain at least %d characters", label, int(rule.Min)))
		}
		if rule.Max > 0 && len(s) > int(rule.Max) {
			r.AddError(attr, fmt.Sprintf("%s should contain at most %d characters", label, int(rule.Max)))
		}
	case RuleRange:
		n, ok := numericValue(value)
		if !ok {
			return
		}
		if n < rule.Min || n > rule.Max {
			r.AddError(attr, fmt.Sprintf("%s must be between %v and %v", label, rule.Min, rule.Max))
		}
	}
}

// numericValue extracts a comparable number from an attribute value.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// AddError attaches a validation error message to an attribute.
func (r *Record) AddError(attribute, message string) {
	r.errs[attribute] = append(r.errs[attribute], message)
}

// Errors returns all attached error messages keyed by attribute.
func (r *Record) Errors() map[string][]string {
	return r.errs
}

// HasErrors reports whether any error is attached.
func (r *Record) HasErrors() bool {
	return len(r.errs) > 0
}

// ClearErrors removes all attached errors.
func (r *Record) ClearErrors() {
	r.errs = make(map[string][]string)
}

// SetScenario switches the validation scenario.
func (r *Record) SetScenario(scenario string) { r.scenario = scenario }

// Scenario returns the active validation scenario.
func (r *Record) Scenario() string { return r.scenario }

// Save runs the full pipeline: relation pre-validation, the record's own
// validation, foreign key propagation, the row write, and relation
// synchronization. Any phase failure aborts the pipeline with the record's
// errors populated.
func (r *Record) Save() error {
	if r.behavior != nil {
		if err := r.behavior.BeforeValidate(); err != nil {
			return err
		}
	}
	if !r.Validate() {
		return types.ErrValidationFailed
	}
	if r.behavior != nil {
		if err := r.behavior.AfterValidate(); err != nil {
			return err
		}
	}
	var err error
	if r.isNew {
		err = r.insertRow()
	} else {
		err = r.updateRow()
	}
	if err != nil {
		return err
	}
	if r.behavior != nil {
		if err := r.behavior.AfterSave(); err != nil {
			return err
		}
	}
	return nil
}

// insertRow writes the record as a new row, generating a UUID for a single
// unassigned text primary key column.
func (r *Record) insertRow() error {
	for _, pk := range r.model.PrimaryKey {
		if r.attrs[pk] != nil {
			continue
		}
		col := r.model.column(pk)
		if len(r.model.PrimaryKey) == 1 && col.Type == TypeText {
			r.attrs[pk] = generateUUID()
			continue
		}
		return fmt.Errorf("%w: model %s primary key %s is unassigned",
			types.ErrInvalidData, r.model.Name, pk)
	}

	cols := make([]string, len(r.model.Columns))
	marks := make([]string, len(r.model.Columns))
	args := make([]any, len(r.model.Columns))
	for i, col := range r.model.Columns {
		cols[i] = col.Name
		marks[i] = "?"
		args[i] = toDBValue(col.Type, r.attrs[col.Name])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.model.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if err := r.backend.exec(query, args...); err != nil {
		return fmt.Errorf("inserting %s row: %w", r.model.Table, err)
	}
	r.isNew = false
	r.oldAttrs = snapshot(r.attrs)
	return nil
}

// updateRow writes the dirty attributes back to the record's row. A record
// with no changes is left untouched.
func (r *Record) updateRow() error {
	dirty := r.DirtyAttributes()
	if len(dirty) == 0 {
		return nil
	}
	if err := r.writeColumns(dirty); err != nil {
		return err
	}
	r.oldAttrs = snapshot(r.attrs)
	return nil
}

// updateColumns assigns the given columns and writes them directly, skipping
// validation and the relation pipeline. On a new record the values are only
// assigned; the pending insert will carry them.
func (r *Record) updateColumns(values map[string]any) error {
	for name, v := range values {
		r.Set(name, v)
	}
	if r.isNew {
		return nil
	}
	stored := make(map[string]any, len(values))
	for name := range values {
		stored[name] = r.attrs[name]
	}
	if err := r.writeColumns(stored); err != nil {
		return err
	}
	for name, v := range stored {
		r.oldAttrs[name] = v
	}
	return nil
}

// writeColumns issues an UPDATE of the given columns keyed by primary key.
func (r *Record) writeColumns(values map[string]any) error {
	cols := make([]string, 0, len(values))
	for name := range values {
		cols = append(cols, name)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+len(r.model.PrimaryKey))
	for _, name := range cols {
		sets = append(sets, name+" = ?")
		colType := TypeText
		if c := r.model.column(name); c != nil {
			colType = c.Type
		}
		args = append(args, toDBValue(colType, values[name]))
	}
	conds := make([]string, 0, len(r.model.PrimaryKey))
	for _, pk := range r.model.PrimaryKey {
		conds = append(conds, pk+" = ?")
		args = append(args, toDBValue(r.model.column(pk).Type, r.oldAttrs[pk]))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		r.model.Table, strings.Join(sets, ", "), strings.Join(conds, " AND "))
	if err := r.backend.exec(query, args...); err != nil {
		return fmt.Errorf("updating %s row: %w", r.model.Table, err)
	}
	return nil
}

// Delete removes the record's row, snapshotting cascade-flagged relations
// first and deleting their records after. The record reverts to new so a
// later Save re-inserts it.
func (r *Record) Delete() error {
	if r.isNew {
		return types.ErrRecordNew
	}
	if r.behavior != nil {
		if err := r.behavior.BeforeDelete(); err != nil {
			return err
		}
	}

	conds := make([]string, 0, len(r.model.PrimaryKey))
	args := make([]any, 0, len(r.model.PrimaryKey))
	for _, pk := range r.model.PrimaryKey {
		conds = append(conds, pk+" = ?")
		args = append(args, toDBValue(r.model.column(pk).Type, r.attrs[pk]))
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", r.model.Table, strings.Join(conds, " AND "))
	if err := r.backend.exec(query, args...); err != nil {
		return fmt.Errorf("deleting %s row: %w", r.model.Table, err)
	}
	r.isNew = true
	r.oldAttrs = nil

	if r.behavior != nil {
		if err := r.behavior.AfterDelete(); err != nil {
			return err
		}
	}
	return nil
}

// Refresh re-reads the record's attributes from its row and drops the
// relation cache.
func (r *Record) Refresh() error {
	if r.isNew {
		return types.ErrRecordNew
	}
	keys := make(map[string]any, len(r.model.PrimaryKey))
	for _, pk := range r.model.PrimaryKey {
		keys[pk] = r.attrs[pk]
	}
	fresh, err := r.backend.Find(r.model.Name, keys)
	if err != nil {
		return err
	}
	r.attrs = fresh.attrs
	r.oldAttrs = fresh.oldAttrs
	r.related = make(map[string]any)
	return nil
}

// RelationMeta returns the metadata of a relation defined on the model.
func (r *Record) RelationMeta(name string) (*types.RelationMeta, error) {
	meta, ok := r.model.Relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrRelationUnknown, r.model.Name, name)
	}
	return meta, nil
}

// Relation returns the cached value of a relation, loading it from storage
// on first access. Load failures are logged and surface as an empty value.
func (r *Record) Relation(name string) any {
	if v, ok := r.related[name]; ok {
		return v
	}
	meta, err := r.RelationMeta(name)
	if err != nil {
		return nil
	}
	if r.isNew {
		r.populate(meta, nil)
		return r.related[name]
	}
	value, err := r.loadRelation(meta)
	if err != nil {
		r.backend.log.Warn("loading relation failed",
			"model", r.model.Name, "relation", name, "error", err)
		value = nil
	}
	r.populate(meta, value)
	return r.related[name]
}

// PopulateRelation replaces the cached value of a relation without touching
// storage.
func (r *Record) PopulateRelation(name string, value any) {
	meta, err := r.RelationMeta(name)
	if err != nil {
		return
	}
	r.populate(meta, value)
}

// populate stores a relation value in the canonical cache shape: nil for an
// unset single, []types.Record for a multiple.
func (r *Record) populate(meta *types.RelationMeta, value any) {
	if meta.Multiple() {
		switch v := value.(type) {
		case []types.Record:
			r.related[meta.Name] = v
		case []*Record:
			out := make([]types.Record, len(v))
			for i, rec := range v {
				out[i] = rec
			}
			r.related[meta.Name] = out
		default:
			r.related[meta.Name] = []types.Record{}
		}
		return
	}
	switch v := value.(type) {
	case nil:
		r.related[meta.Name] = nil
	case *Record:
		if v == nil {
			r.related[meta.Name] = nil
			return
		}
		r.related[meta.Name] = types.Record(v)
	case types.Record:
		r.related[meta.Name] = v
	default:
		r.related[meta.Name] = nil
	}
}

// loadRelation reads a relation's current value from storage.
func (r *Record) loadRelation(meta *types.RelationMeta) (any, error) {
	if meta.Junction() {
		related, err := r.backend.Model(meta.RelatedModel)
		if err != nil {
			return nil, err
		}
		ownerVals := make(map[string]any, len(meta.Via.OwnerLink))
		for jCol, ownCol := range meta.Via.OwnerLink {
			ownerVals[jCol] = r.attrs[ownCol]
		}
		return r.backend.selectViaJunction(related, meta.Via, ownerVals)
	}

	keys := make(map[string]any, len(meta.Link))
	for relCol, ownCol := range meta.Link {
		v := r.attrs[ownCol]
		if v == nil && !meta.Multiple() {
			return nil, nil
		}
		keys[relCol] = v
	}

	if meta.Multiple() {
		return r.backend.FindAll(meta.RelatedModel, keys)
	}
	rec, err := r.backend.Find(meta.RelatedModel, keys)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// Link establishes the persisted connection to a related record. For a
// junction relation a junction row is written with the extra column values;
// for a direct relation the foreign key columns are written on whichever
// side holds them, bypassing validation.
func (r *Record) Link(name string, related types.Record, extraColumns map[string]any) error {
	meta, err := r.RelationMeta(name)
	if err != nil {
		return err
	}

	if meta.Junction() {
		if r.isNew || related.IsNew() {
			return fmt.Errorf("%w: both sides must be saved before linking", types.ErrRecordNew)
		}
		return r.writeJunctionRow(meta, related, extraColumns)
	}

	if r.model.isPrimaryKey(meta.OwnerColumns()) {
		// Related side holds the foreign key.
		ar, ok := related.(*Record)
		if !ok {
			return fmt.Errorf("%w: related record has a foreign backend", types.ErrInvalidData)
		}
		values := make(map[string]any, len(meta.Link))
		for relCol, ownCol := range meta.Link {
			values[relCol] = r.attrs[ownCol]
		}
		if ar.isNew {
			for relCol, v := range values {
				ar.Set(relCol, v)
			}
			return ar.insertRow()
		}
		return ar.updateColumns(values)
	}

	// Owner holds the foreign key.
	values := make(map[string]any, len(meta.Link))
	for relCol, ownCol := range meta.Link {
		values[ownCol] = related.Get(relCol)
	}
	return r.updateColumns(values)
}

// writeJunctionRow upserts the junction row connecting this record to the
// related one, carrying any extra column values.
func (r *Record) writeJunctionRow(meta *types.RelationMeta, related types.Record, extraColumns map[string]any) error {
	values := make(map[string]any, len(meta.Via.OwnerLink)+len(meta.Via.RelatedLink)+len(extraColumns))
	for jCol, ownCol := range meta.Via.OwnerLink {
		values[jCol] = r.attrs[ownCol]
	}
	for jCol, relCol := range meta.Via.RelatedLink {
		values[jCol] = related.Get(relCol)
	}
	for col, v := range extraColumns {
		values[col] = v
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		marks[i] = "?"
		args[i] = values[col]
	}
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		meta.Via.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if err := r.backend.exec(query, args...); err != nil {
		return fmt.Errorf("writing junction row: %w", err)
	}
	return nil
}

// Unlink removes the persisted connection to a related record: the junction
// row is deleted for junction relations, the foreign key columns are cleared
// otherwise. The related row itself is never deleted here.
func (r *Record) Unlink(name string, related types.Record, force bool) error {
	meta, err := r.RelationMeta(name)
	if err != nil {
		return err
	}

	if meta.Junction() {
		total := len(meta.Via.OwnerLink) + len(meta.Via.RelatedLink)
		conds := make([]string, 0, total)
		args := make([]any, 0, total)
		jCols := make([]string, 0, total)
		for jCol := range meta.Via.OwnerLink {
			jCols = append(jCols, jCol)
		}
		for jCol := range meta.Via.RelatedLink {
			jCols = append(jCols, jCol)
		}
		sort.Strings(jCols)
		for _, jCol := range jCols {
			conds = append(conds, jCol+" = ?")
			if ownCol, ok := meta.Via.OwnerLink[jCol]; ok {
				args = append(args, r.attrs[ownCol])
			} else {
				args = append(args, related.Get(meta.Via.RelatedLink[jCol]))
			}
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE %s", meta.Via.Table, strings.Join(conds, " AND "))
		if err := r.backend.exec(query, args...); err != nil {
			return fmt.Errorf("deleting junction row: %w", err)
		}
		return nil
	}

	if r.model.isPrimaryKey(meta.OwnerColumns()) {
		ar, ok := related.(*Record)
		if !ok {
			return fmt.Errorf("%w: related record has a foreign backend", types.ErrInvalidData)
		}
		values := make(map[string]any, len(meta.Link))
		for relCol := range meta.Link {
			values[relCol] = nil
		}
		return ar.updateColumns(values)
	}

	values := make(map[string]any, len(meta.Link))
	for _, ownCol := range meta.Link {
		values[ownCol] = nil
	}
	return r.updateColumns(values)
}

// FindRelated loads a related record by key attributes.
func (r *Record) FindRelated(meta *types.RelationMeta, keys map[string]any) (types.Record, error) {
	rec, err := r.backend.Find(meta.RelatedModel, keys)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// NewRelated constructs a new unsaved record of the relation's model.
func (r *Record) NewRelated(meta *types.RelationMeta) (types.Record, error) {
	rec, err := r.backend.NewRecord(meta.RelatedModel)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RelationLabel returns the display label of a relation.
func (r *Record) RelationLabel(name string) string {
	return r.model.label(name)
}

// SafeAttribute reports whether an attribute or relation may be
// mass-assigned.
func (r *Record) SafeAttribute(name string) bool {
	if len(r.model.Safe) == 0 {
		return true
	}
	for _, s := range r.model.Safe {
		if s == name {
			return true
		}
	}
	return false
}

// SetRelation assigns a pending relation value through the bound relation
// engine.
func (r *Record) SetRelation(name string, value any) error {
	if r.behavior == nil {
		return fmt.Errorf("%w: %s", types.ErrRelationUndeclared, name)
	}
	return r.behavior.SetRelation(name, value)
}

// LoadRelationsForSave bulk-assigns the declared relations present in data.
func (r *Record) LoadRelationsForSave(data map[string]any) error {
	if r.behavior == nil {
		return nil
	}
	return r.behavior.LoadRelationsForSave(data)
}

// Load mass-assigns columns and relations from one input map, the bulk-input
// entry point for form-like data.
func (r *Record) Load(data map[string]any) error {
	r.SetAttributes(data)
	return r.LoadRelationsForSave(data)
}
