package activerecord

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tether/pkg/relations"
	"github.com/mesh-intelligence/tether/pkg/types"
)

// databaseFile is the SQLite file created under the configured data
// directory.
const databaseFile = "tether.db"

// Backend owns the SQLite handle and the model catalog. Models may be
// registered before or after Attach; registering against an attached
// backend creates the tables immediately.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	models   map[string]*Model
	log      *slog.Logger
}

// NewBackend creates a detached backend with an empty model catalog.
func NewBackend() *Backend {
	return &Backend{
		models: make(map[string]*Model),
		log:    slog.Default(),
	}
}

// SetLogger replaces the backend's logger. Must be called before Attach.
func (b *Backend) SetLogger(log *slog.Logger) {
	if log != nil {
		b.log = log
	}
}

// RegisterModel validates and adds a model to the catalog, parsing its
// relation-save configuration into a registry. Duplicate names are rejected.
func (b *Backend) RegisterModel(m *Model) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := m.Validate(); err != nil {
		return err
	}
	if _, ok := b.models[m.Name]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateModel, m.Name)
	}
	if m.SaveRelations != nil {
		cfg := *m.SaveRelations
		if cfg.Logger == nil {
			cfg.Logger = b.log
		}
		reg, err := relations.NewRegistry(cfg)
		if err != nil {
			return fmt.Errorf("model %s relation config: %w", m.Name, err)
		}
		m.registry = reg
	}
	b.models[m.Name] = m

	if b.attached {
		if err := b.createSchema(m); err != nil {
			delete(b.models, m.Name)
			return err
		}
	}
	return nil
}

// Attach opens the database under the configured data directory and creates
// the tables of every registered model. Attaching twice is an error.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(config.DataDir, databaseFile)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	b.config = config
	b.db = db
	b.attached = true

	for _, m := range b.models {
		if err := b.createSchema(m); err != nil {
			b.db.Close()
			b.db = nil
			b.attached = false
			return err
		}
	}

	b.log.Debug("backend attached", "path", dbPath, "models", len(b.models))
	return nil
}

// Detach closes the database handle. The model catalog survives so the
// backend can be re-attached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrBackendDetached
	}
	err := b.db.Close()
	b.db = nil
	b.attached = false
	if err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Attached reports whether the backend holds an open database handle.
func (b *Backend) Attached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attached
}

// Model looks up a registered model by name.
func (b *Backend) Model(name string) (*Model, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrModelUnknown, name)
	}
	return m, nil
}

// NewRecord constructs a new unsaved record of the named model, binding the
// relation behavior when the model saves relations.
func (b *Backend) NewRecord(model string) (*Record, error) {
	m, err := b.Model(model)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		backend: b,
		model:   m,
		attrs:   make(map[string]any),
		related: make(map[string]any),
		errs:    make(map[string][]string),
		isNew:   true,
	}
	if m.registry != nil {
		rec.behavior = m.registry.Bind(rec)
	}
	return rec, nil
}

// Find loads one record of the named model matching the key attributes.
// Returns ErrNotFound when no row matches.
func (b *Backend) Find(model string, keys map[string]any) (*Record, error) {
	m, err := b.Model(model)
	if err != nil {
		return nil, err
	}
	records, err := b.selectRecords(m, keys, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, model)
	}
	return records[0], nil
}

// FindAll loads every record of the named model matching the filter
// attributes. A nil filter loads all rows.
func (b *Backend) FindAll(model string, filter map[string]any) ([]*Record, error) {
	m, err := b.Model(model)
	if err != nil {
		return nil, err
	}
	return b.selectRecords(m, filter, 0)
}

// createSchema creates the model's table and the junction tables of its
// junction relations. Idempotent; shared junction tables may be created by
// either side.
func (b *Backend) createSchema(m *Model) error {
	for _, stmt := range schemaStatements(m) {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema for model %s: %w", m.Name, err)
		}
	}
	return nil
}

// schemaStatements builds the CREATE TABLE statements for a model.
func schemaStatements(m *Model) []string {
	cols := make([]string, 0, len(m.Columns)+1)
	for _, col := range m.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", col.Name, sqliteType(col.Type)))
	}
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(m.PrimaryKey, ", ")))
	stmts := []string{fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)", m.Table, strings.Join(cols, ", "))}

	for _, meta := range m.Relations {
		if meta.Via == nil {
			continue
		}
		jcols := make([]string, 0, len(meta.Via.OwnerLink)+len(meta.Via.RelatedLink)+len(meta.Via.ExtraColumns))
		keyCols := make([]string, 0, len(meta.Via.OwnerLink)+len(meta.Via.RelatedLink))
		for jCol := range meta.Via.OwnerLink {
			jcols = append(jcols, jCol+" TEXT")
			keyCols = append(keyCols, jCol)
		}
		for jCol := range meta.Via.RelatedLink {
			jcols = append(jcols, jCol+" TEXT")
			keyCols = append(keyCols, jCol)
		}
		for _, extra := range meta.Via.ExtraColumns {
			jcols = append(jcols, extra+" TEXT")
		}
		jcols = append(jcols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keyCols, ", ")))
		stmts = append(stmts, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (%s)", meta.Via.Table, strings.Join(jcols, ", ")))
	}
	return stmts
}

// sqliteType maps a column type to its SQLite storage class.
func sqliteType(colType string) string {
	switch colType {
	case TypeInt, TypeBool:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// generateUUID returns a time-ordered UUID, falling back to a random one if
// v7 generation fails.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
