package types

// Record is the contract the relation engine requires from a persistence
// layer record. A record carries named attributes, tracks which of them
// changed since load, validates itself against its active scenario, and
// knows how to persist, delete, and refresh its own row.
//
// Relation values returned by Relation are nil (single, unset), a Record
// (single), or a []Record (multiple). Implementations must return an
// untyped nil for an unset single relation.
type Record interface {
	// ModelName returns the model identifier the record belongs to.
	ModelName() string

	// FormName returns the form-scoped key used for bulk attribute input.
	FormName() string

	// IsNew reports whether the record has not been persisted yet.
	IsNew() bool

	// PrimaryKey returns the primary key columns that currently have a
	// value assigned. A new record with generated keys returns an empty map.
	PrimaryKey() map[string]any

	// PrimaryKeyColumns returns the primary key column names in order.
	PrimaryKeyColumns() []string

	// IsPrimaryKey reports whether columns is exactly the primary key set.
	IsPrimaryKey(columns []string) bool

	// Get returns the value of a single attribute, nil if unset.
	Get(attribute string) any

	// Set assigns a single attribute value. Unknown attributes are ignored.
	Set(attribute string, value any)

	// SetAttributes mass-assigns attribute values, honoring the record's
	// safe-attribute list. Unknown and unsafe keys are skipped.
	SetAttributes(values map[string]any)

	// DirtyAttributes returns the attributes changed since the record was
	// loaded. Every assigned attribute of a new record is dirty.
	DirtyAttributes() map[string]any

	// Validate runs the record's validation rules for its active scenario
	// and reports whether they all passed. Previous errors are cleared first.
	Validate() bool

	// AddError attaches a validation error message to an attribute.
	AddError(attribute, message string)

	// Errors returns all attached error messages keyed by attribute.
	Errors() map[string][]string

	// HasErrors reports whether any error is attached.
	HasErrors() bool

	// ClearErrors removes all attached errors.
	ClearErrors()

	// SetScenario switches the validation scenario.
	SetScenario(scenario string)

	// Scenario returns the active validation scenario.
	Scenario() string

	// Save validates and persists the record.
	Save() error

	// Delete removes the record's row.
	Delete() error

	// Refresh re-reads the record's attributes from storage.
	Refresh() error

	// RelationMeta returns the metadata of a relation defined on the
	// record's model. Returns ErrRelationUnknown for undefined names.
	RelationMeta(name string) (*RelationMeta, error)

	// Relation returns the loaded (or cached) value of a relation.
	Relation(name string) any

	// PopulateRelation replaces the in-memory cached value of a relation
	// without touching storage.
	PopulateRelation(name string, value any)

	// Link establishes the persisted connection to a related record:
	// a junction row insert for junction relations, a foreign key write
	// otherwise. extraColumns values are written to the junction row.
	Link(name string, related Record, extraColumns map[string]any) error

	// Unlink removes the persisted connection: the junction row is deleted
	// for junction relations, the foreign key is cleared otherwise.
	Unlink(name string, related Record, force bool) error

	// FindRelated loads a related record by the given key attributes.
	// Returns ErrNotFound when no row matches.
	FindRelated(meta *RelationMeta, keys map[string]any) (Record, error)

	// NewRelated constructs a new unsaved record of the relation's type.
	NewRelated(meta *RelationMeta) (Record, error)

	// RelationLabel returns the human-readable label of a relation,
	// used as the prefix of relation validation errors.
	RelationLabel(name string) string

	// SafeAttribute reports whether the named attribute or relation may be
	// mass-assigned.
	SafeAttribute(name string) bool
}

// RelationLoader is implemented by records that can bulk-assign their own
// declared relations from keyed input. The relation engine recurses through
// this when populating a new related record from an attribute map.
type RelationLoader interface {
	LoadRelationsForSave(data map[string]any) error
}
