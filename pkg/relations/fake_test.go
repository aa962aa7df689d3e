package relations

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tether/pkg/types"
)

// fakeStore is an in-memory record store shared by the fake records of one
// test, standing in for the persistence backend.
type fakeStore struct {
	nextID  int
	records map[string][]*fakeRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string][]*fakeRecord)}
}

// add registers a record as persisted so FindRelated can see it.
func (s *fakeStore) add(rec *fakeRecord) {
	for _, existing := range s.records[rec.model] {
		if existing == rec {
			return
		}
	}
	s.records[rec.model] = append(s.records[rec.model], rec)
}

func (s *fakeStore) find(model string, keys map[string]any) (*fakeRecord, bool) {
	for _, rec := range s.records[model] {
		match := true
		for col, v := range keys {
			if fmt.Sprint(rec.attrs[col]) != fmt.Sprint(v) {
				match = false
				break
			}
		}
		if match {
			return rec, true
		}
	}
	return nil, false
}

func (s *fakeStore) generateID() string {
	s.nextID++
	return fmt.Sprintf("gen-%d", s.nextID)
}

// fakeRecord implements types.Record in memory, recording the persistence
// calls the engine makes so tests can assert on them.
type fakeRecord struct {
	store    *fakeStore
	model    string
	form     string
	pkCols   []string
	attrs    map[string]any
	dirty    map[string]bool
	isNew    bool
	scenario string
	errs     map[string][]string
	metas    map[string]*types.RelationMeta
	related  map[string]any
	safe     []string

	// Failure injection.
	invalidMsg string
	saveErr    error
	deleteErr  error
	linkErr    error

	// Call recording.
	saveCount   int
	deleteCount int
	linked      []string
	unlinked    []string
	linkExtras  []map[string]any
	forces      []bool
}

var (
	_ types.Record         = (*fakeRecord)(nil)
	_ types.RelationLoader = (*fakeRecord)(nil)
)

func newFakeRecord(store *fakeStore, model string, pkCols []string) *fakeRecord {
	return &fakeRecord{
		store:   store,
		model:   model,
		form:    model,
		pkCols:  pkCols,
		attrs:   make(map[string]any),
		dirty:   make(map[string]bool),
		isNew:   true,
		errs:    make(map[string][]string),
		metas:   make(map[string]*types.RelationMeta),
		related: make(map[string]any),
	}
}

// persisted marks the record as saved and visible in the store.
func (f *fakeRecord) persisted() *fakeRecord {
	f.isNew = false
	f.dirty = make(map[string]bool)
	f.store.add(f)
	return f
}

func (f *fakeRecord) ModelName() string { return f.model }
func (f *fakeRecord) FormName() string  { return f.form }
func (f *fakeRecord) IsNew() bool       { return f.isNew }

func (f *fakeRecord) PrimaryKey() map[string]any {
	pk := make(map[string]any)
	for _, col := range f.pkCols {
		if v := f.attrs[col]; v != nil {
			pk[col] = v
		}
	}
	return pk
}

func (f *fakeRecord) PrimaryKeyColumns() []string {
	cols := make([]string, len(f.pkCols))
	copy(cols, f.pkCols)
	return cols
}

func (f *fakeRecord) IsPrimaryKey(columns []string) bool {
	if len(columns) != len(f.pkCols) {
		return false
	}
	for _, col := range columns {
		found := false
		for _, pk := range f.pkCols {
			if pk == col {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeRecord) Get(attribute string) any { return f.attrs[attribute] }

func (f *fakeRecord) Set(attribute string, value any) {
	f.attrs[attribute] = value
	f.dirty[attribute] = true
}

func (f *fakeRecord) SetAttributes(values map[string]any) {
	for k, v := range values {
		if f.SafeAttribute(k) {
			f.Set(k, v)
		}
	}
}

func (f *fakeRecord) DirtyAttributes() map[string]any {
	out := make(map[string]any)
	if f.isNew {
		for k, v := range f.attrs {
			if v != nil {
				out[k] = v
			}
		}
		return out
	}
	for k := range f.dirty {
		out[k] = f.attrs[k]
	}
	return out
}

func (f *fakeRecord) Validate() bool {
	f.ClearErrors()
	if f.invalidMsg != "" {
		f.AddError("name", f.invalidMsg)
		return false
	}
	return true
}

func (f *fakeRecord) AddError(attribute, message string) {
	f.errs[attribute] = append(f.errs[attribute], message)
}

func (f *fakeRecord) Errors() map[string][]string { return f.errs }
func (f *fakeRecord) HasErrors() bool             { return len(f.errs) > 0 }
func (f *fakeRecord) ClearErrors()                { f.errs = make(map[string][]string) }

func (f *fakeRecord) SetScenario(scenario string) { f.scenario = scenario }
func (f *fakeRecord) Scenario() string            { return f.scenario }

func (f *fakeRecord) Save() error {
	f.saveCount++
	if f.saveErr != nil {
		return f.saveErr
	}
	if len(f.pkCols) == 1 && f.attrs[f.pkCols[0]] == nil {
		f.attrs[f.pkCols[0]] = f.store.generateID()
	}
	f.isNew = false
	f.dirty = make(map[string]bool)
	f.store.add(f)
	return nil
}

func (f *fakeRecord) Delete() error {
	f.deleteCount++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.isNew = true
	return nil
}

func (f *fakeRecord) Refresh() error { return nil }

func (f *fakeRecord) RelationMeta(name string) (*types.RelationMeta, error) {
	meta, ok := f.metas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrRelationUnknown, name)
	}
	return meta, nil
}

func (f *fakeRecord) Relation(name string) any { return f.related[name] }

func (f *fakeRecord) PopulateRelation(name string, value any) {
	f.related[name] = value
}

func (f *fakeRecord) Link(name string, related types.Record, extraColumns map[string]any) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.linked = append(f.linked, name+":"+recordLabel(related))
	f.linkExtras = append(f.linkExtras, extraColumns)
	return nil
}

func (f *fakeRecord) Unlink(name string, related types.Record, force bool) error {
	f.unlinked = append(f.unlinked, name+":"+recordLabel(related))
	f.forces = append(f.forces, force)
	return nil
}

func (f *fakeRecord) FindRelated(meta *types.RelationMeta, keys map[string]any) (types.Record, error) {
	rec, ok := f.store.find(meta.RelatedModel, keys)
	if !ok {
		return nil, types.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecord) NewRelated(meta *types.RelationMeta) (types.Record, error) {
	pk := meta.RelatedPrimaryKey
	if len(pk) == 0 {
		pk = []string{"id"}
	}
	return newFakeRecord(f.store, meta.RelatedModel, pk), nil
}

func (f *fakeRecord) RelationLabel(name string) string {
	return strings.ToUpper(name[:1]) + name[1:]
}

func (f *fakeRecord) SafeAttribute(name string) bool {
	if len(f.safe) == 0 {
		return true
	}
	for _, s := range f.safe {
		if s == name {
			return true
		}
	}
	return false
}

func (f *fakeRecord) LoadRelationsForSave(map[string]any) error { return nil }

// recordLabel identifies a record in call recordings by its id attribute.
func recordLabel(rec types.Record) string {
	return fmt.Sprint(rec.Get("id"))
}

// projectMetas is the relation fixture shared by the engine tests: a single
// relation whose key the owner copies, a direct collection, and a junction
// collection.
func projectMetas() map[string]*types.RelationMeta {
	return map[string]*types.RelationMeta{
		"owner": {
			Name:              "owner",
			Kind:              types.RelationSingle,
			RelatedModel:      "contact",
			RelatedForm:       "contact",
			RelatedPrimaryKey: []string{"id"},
			Link:              map[string]string{"id": "contact_id"},
		},
		"tasks": {
			Name:              "tasks",
			Kind:              types.RelationMultiple,
			RelatedModel:      "task",
			RelatedForm:       "task",
			RelatedPrimaryKey: []string{"id"},
			Link:              map[string]string{"project_id": "id"},
		},
		"tags": {
			Name:              "tags",
			Kind:              types.RelationMultiple,
			RelatedModel:      "tag",
			RelatedForm:       "tag",
			RelatedPrimaryKey: []string{"id"},
			Via: &types.JunctionMeta{
				Table:        "project_tags",
				OwnerLink:    map[string]string{"project_id": "id"},
				RelatedLink:  map[string]string{"tag_id": "id"},
				ExtraColumns: []string{"tagged_at"},
			},
		},
	}
}

// newProject builds an unsaved project record with the fixture relations.
func newProject(store *fakeStore) *fakeRecord {
	p := newFakeRecord(store, "project", []string{"id"})
	p.metas = projectMetas()
	return p
}

// newTask builds a persisted task with the given id.
func newTask(store *fakeStore, id string) *fakeRecord {
	rec := newFakeRecord(store, "task", []string{"id"})
	rec.attrs["id"] = id
	return rec.persisted()
}

// newTag builds a persisted tag with the given id.
func newTag(store *fakeStore, id string) *fakeRecord {
	rec := newFakeRecord(store, "tag", []string{"id"})
	rec.attrs["id"] = id
	return rec.persisted()
}

// newContact builds a persisted contact with the given id.
func newContact(store *fakeStore, id string) *fakeRecord {
	rec := newFakeRecord(store, "contact", []string{"id"})
	rec.attrs["id"] = id
	return rec.persisted()
}
