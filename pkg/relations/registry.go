package relations

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/tether/pkg/types"
)

// Relation key modes. KeyMode selects which key LoadRelationsForSave looks
// up in the input map for each relation.
const (
	KeyModeRelationName = "relation_name"
	KeyModeFormName     = "form_name"
)

// validKeyModes is the set of recognized key mode values.
var validKeyModes = map[string]bool{
	KeyModeRelationName: true,
	KeyModeFormName:     true,
}

// Recognized declaration option keys.
const (
	OptionScenario      = "scenario"
	OptionExtraColumns  = "extraColumns"
	OptionCascadeDelete = "cascadeDelete"
)

// ExtraColumnsFunc produces junction-table column values for one related
// record at link time.
type ExtraColumnsFunc func(related types.Record) map[string]any

// Declaration names one relation to be saved with the owner, with optional
// configuration. Recognized option keys are OptionScenario (string),
// OptionExtraColumns (map[string]any or ExtraColumnsFunc), and
// OptionCascadeDelete (bool).
type Declaration struct {
	Name    string
	Options map[string]any
}

// Rel is a shorthand for a bare relation declaration.
func Rel(name string) Declaration {
	return Declaration{Name: name}
}

// Config configures a relation Registry.
type Config struct {
	// Relations lists the declared relations in save order.
	Relations []Declaration

	// KeyMode selects bulk-load keys: the relation name (default) or the
	// related type's form name.
	KeyMode string

	// OnlySafe makes SetRelation silently ignore relations the owner does
	// not list as safe for mass assignment.
	OnlySafe bool

	// Logger receives post-save and cascade failure reports.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Registry holds the parsed, immutable relation configuration for one
// model. It is shared by every Behavior bound from it.
type Registry struct {
	names         []string
	scenarios     map[string]string
	extraColumns  map[string]any
	cascadeDelete map[string]bool
	keyMode       string
	onlySafe      bool
	log           *slog.Logger
}

// NewRegistry parses cfg into a Registry. Unknown option keys, malformed
// option values, and unknown key modes are configuration errors and fail
// here, never at save time.
func NewRegistry(cfg Config) (*Registry, error) {
	keyMode := cfg.KeyMode
	if keyMode == "" {
		keyMode = KeyModeRelationName
	}
	if !validKeyModes[keyMode] {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownKeyMode, cfg.KeyMode)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	reg := &Registry{
		names:         make([]string, 0, len(cfg.Relations)),
		scenarios:     make(map[string]string),
		extraColumns:  make(map[string]any),
		cascadeDelete: make(map[string]bool),
		keyMode:       keyMode,
		onlySafe:      cfg.OnlySafe,
		log:           log,
	}

	for _, decl := range cfg.Relations {
		if decl.Name == "" {
			return nil, fmt.Errorf("%w: empty relation name", types.ErrInvalidRelationMeta)
		}
		reg.names = append(reg.names, decl.Name)

		for key, value := range decl.Options {
			switch key {
			case OptionScenario:
				s, ok := value.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s must be a string", types.ErrInvalidRelationOption, decl.Name, key)
				}
				reg.scenarios[decl.Name] = s
			case OptionExtraColumns:
				if err := checkExtraColumnsProvider(value); err != nil {
					return nil, fmt.Errorf("%w: relation %s", err, decl.Name)
				}
				reg.extraColumns[decl.Name] = value
			case OptionCascadeDelete:
				b, ok := value.(bool)
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s must be a bool", types.ErrInvalidRelationOption, decl.Name, key)
				}
				reg.cascadeDelete[decl.Name] = b
			default:
				return nil, fmt.Errorf("%w: %s.%s", types.ErrUnknownRelationOption, decl.Name, key)
			}
		}
	}

	return reg, nil
}

// checkExtraColumnsProvider rejects provider shapes that can never produce
// a column map. Providers returning any are only checked at link time.
func checkExtraColumnsProvider(value any) error {
	switch value.(type) {
	case map[string]any, ExtraColumnsFunc, func(types.Record) map[string]any, func(types.Record) any:
		return nil
	default:
		return types.ErrInvalidRelationOption
	}
}

// Names returns the declared relation names in save order.
func (reg *Registry) Names() []string {
	out := make([]string, len(reg.names))
	copy(out, reg.names)
	return out
}

// Declared reports whether name is a declared relation.
func (reg *Registry) Declared(name string) bool {
	for _, n := range reg.names {
		if n == name {
			return true
		}
	}
	return false
}

// HasExtraColumns reports whether a junction extra-column provider is
// configured for the relation. When true, every save forces a full relink
// of the collection so changed column values are rewritten.
func (reg *Registry) HasExtraColumns(name string) bool {
	_, ok := reg.extraColumns[name]
	return ok
}

// CascadeDelete reports whether the relation is flagged for cascade
// deletion.
func (reg *Registry) CascadeDelete(name string) bool {
	return reg.cascadeDelete[name]
}

// Bind attaches a fresh Behavior for one owner record. The Behavior owns
// all mutable per-cycle state; the Registry itself is never mutated.
func (reg *Registry) Bind(owner types.Record) *Behavior {
	return &Behavior{
		reg:   reg,
		owner: owner,
		log:   reg.log,
		session: session{
			oldValues: make(map[string]any),
			newValues: make(map[string]any),
		},
	}
}
