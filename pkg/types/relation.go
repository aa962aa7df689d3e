package types

// Relation kinds. A relation resolves either to a single related record or
// to a collection of related records.
const (
	RelationSingle   = "single"
	RelationMultiple = "multiple"
)

// validRelationKinds is the set of recognized relation kind values.
var validRelationKinds = map[string]bool{
	RelationSingle:   true,
	RelationMultiple: true,
}

// RelationMeta describes one relation defined on a model. Immutable after
// model registration.
type RelationMeta struct {
	// Name is the relation name, unique per model.
	Name string

	// Kind is RelationSingle or RelationMultiple.
	Kind string

	// RelatedModel is the model identifier of the related record type.
	RelatedModel string

	// RelatedForm is the related type's form-scoped key.
	RelatedForm string

	// RelatedPrimaryKey lists the related model's primary key columns.
	RelatedPrimaryKey []string

	// Link maps related record columns to owner columns. For a direct
	// relation this is the foreign key definition; unused when Via is set.
	Link map[string]string

	// Via describes the junction table for many-to-many relations.
	Via *JunctionMeta
}

// JunctionMeta describes the junction table mediating a many-to-many
// relation.
type JunctionMeta struct {
	// Table is the junction table name.
	Table string

	// OwnerLink maps junction columns to owner columns.
	OwnerLink map[string]string

	// RelatedLink maps junction columns to related record columns.
	RelatedLink map[string]string

	// ExtraColumns lists additional junction columns that may carry
	// per-link values.
	ExtraColumns []string
}

// Multiple reports whether the relation resolves to a collection.
func (m *RelationMeta) Multiple() bool {
	return m.Kind == RelationMultiple
}

// Junction reports whether the relation goes through a junction table.
func (m *RelationMeta) Junction() bool {
	return m.Via != nil
}

// RelatedColumns returns the related-side columns of the link definition.
func (m *RelationMeta) RelatedColumns() []string {
	cols := make([]string, 0, len(m.Link))
	for relCol := range m.Link {
		cols = append(cols, relCol)
	}
	return cols
}

// OwnerColumns returns the owner-side columns of the link definition.
func (m *RelationMeta) OwnerColumns() []string {
	cols := make([]string, 0, len(m.Link))
	for _, ownCol := range m.Link {
		cols = append(cols, ownCol)
	}
	return cols
}

// Validate checks that the metadata is well-formed. It returns a sentinel
// error from this package on failure.
func (m *RelationMeta) Validate() error {
	if m.Name == "" || m.RelatedModel == "" {
		return ErrInvalidRelationMeta
	}
	if !validRelationKinds[m.Kind] {
		return ErrInvalidRelationMeta
	}
	if m.Via == nil && len(m.Link) == 0 {
		return ErrInvalidRelationMeta
	}
	if m.Via != nil {
		if m.Via.Table == "" || len(m.Via.OwnerLink) == 0 || len(m.Via.RelatedLink) == 0 {
			return ErrInvalidRelationMeta
		}
	}
	return nil
}
