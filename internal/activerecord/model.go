package activerecord

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tether/pkg/relations"
	"github.com/mesh-intelligence/tether/pkg/types"
)

// Column types understood by the record layer.
const (
	TypeText  = "text"
	TypeInt   = "int"
	TypeFloat = "float"
	TypeBool  = "bool"
	TypeTime  = "time"
)

// validColumnTypes is the set of recognized column type values.
var validColumnTypes = map[string]bool{
	TypeText:  true,
	TypeInt:   true,
	TypeFloat: true,
	TypeBool:  true,
	TypeTime:  true,
}

// Column defines one attribute of a model and its storage type.
type Column struct {
	Name string
	Type string
}

// Validation rule kinds.
const (
	RuleRequired = "required"
	RuleLength   = "length"
	RuleRange    = "range"
)

// Rule declares one validation constraint over a set of attributes.
// On limits the rule to the listed scenarios; empty means every scenario.
type Rule struct {
	Attributes []string
	Kind       string
	Min        float64
	Max        float64
	On         []string
}

// Model is the declarative definition of one record type: its table, columns,
// primary key, validation rules, relations, and the relation-save
// configuration parsed into a registry at registration time.
type Model struct {
	// Name is the model identifier, unique per backend.
	Name string

	// Table is the storage table name.
	Table string

	// Form is the form-scoped key for bulk input. Defaults to Name.
	Form string

	// Columns lists the model's attributes in storage order.
	Columns []Column

	// PrimaryKey names the key columns. A single text column is generated
	// as a UUID on insert when left unassigned.
	PrimaryKey []string

	// Rules are the validation constraints.
	Rules []Rule

	// Relations defines the model's relations by name.
	Relations map[string]*types.RelationMeta

	// Safe restricts mass assignment to the listed attribute and relation
	// names. Empty means everything is assignable.
	Safe []string

	// Labels overrides the generated attribute labels.
	Labels map[string]string

	// SaveRelations configures which relations persist with the record.
	SaveRelations *relations.Config

	registry *relations.Registry
}

// Validate checks the definition and fills defaults. Called once by the
// backend during registration.
func (m *Model) Validate() error {
	if m.Name == "" || m.Table == "" {
		return fmt.Errorf("%w: model needs a name and a table", types.ErrInvalidData)
	}
	if m.Form == "" {
		m.Form = m.Name
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("%w: model %s has no columns", types.ErrInvalidData, m.Name)
	}
	for _, col := range m.Columns {
		if !validColumnTypes[col.Type] {
			return fmt.Errorf("%w: model %s column %s has unknown type %q",
				types.ErrInvalidData, m.Name, col.Name, col.Type)
		}
	}
	if len(m.PrimaryKey) == 0 {
		return fmt.Errorf("%w: model %s has no primary key", types.ErrInvalidData, m.Name)
	}
	for _, pk := range m.PrimaryKey {
		if !m.hasColumn(pk) {
			return fmt.Errorf("%w: model %s primary key column %s is not defined",
				types.ErrInvalidData, m.Name, pk)
		}
	}
	for name, meta := range m.Relations {
		if meta.Name == "" {
			meta.Name = name
		}
		if err := meta.Validate(); err != nil {
			return fmt.Errorf("model %s relation %s: %w", m.Name, name, err)
		}
	}
	return nil
}

// Registry returns the relation registry parsed from SaveRelations, nil when
// the model saves no relations.
func (m *Model) Registry() *relations.Registry {
	return m.registry
}

func (m *Model) column(name string) *Column {
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i]
		}
	}
	return nil
}

func (m *Model) hasColumn(name string) bool {
	return m.column(name) != nil
}

// isPrimaryKey reports whether columns is exactly the primary key set,
// order-insensitive.
func (m *Model) isPrimaryKey(columns []string) bool {
	if len(columns) != len(m.PrimaryKey) {
		return false
	}
	for _, col := range columns {
		found := false
		for _, pk := range m.PrimaryKey {
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

// label returns the display label of an attribute or relation: the
// configured override, or the name humanized.
func (m *Model) label(name string) string {
	if l, ok := m.Labels[name]; ok {
		return l
	}
	return humanize(name)
}

// humanize turns snake_case attribute names into capitalized words.
func humanize(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// appliesTo reports whether a rule runs in the given scenario.
func (r Rule) appliesTo(scenario string) bool {
	if len(r.On) == 0 {
		return true
	}
	for _, s := range r.On {
		if s == scenario {
			return true
		}
	}
	return false
}
