package activerecord

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tether/pkg/relations"
	"github.com/mesh-intelligence/tether/pkg/types"
)

// testModels mirrors a small project-tracking schema: a contact owning
// projects, tasks holding the project foreign key, and tags attached through
// a junction table.
func testModels() []*Model {
	contact := &Model{
		Name:  "contact",
		Table: "contacts",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "name", Type: TypeText},
			{Name: "email", Type: TypeText},
		},
		PrimaryKey: []string{"id"},
		Rules: []Rule{
			{Attributes: []string{"name"}, Kind: RuleRequired},
		},
	}

	task := &Model{
		Name:  "task",
		Table: "tasks",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "project_id", Type: TypeText},
			{Name: "title", Type: TypeText},
			{Name: "done", Type: TypeBool},
		},
		PrimaryKey: []string{"id"},
		Rules: []Rule{
			{Attributes: []string{"title"}, Kind: RuleRequired},
		},
	}

	tag := &Model{
		Name:  "tag",
		Table: "tags",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "name", Type: TypeText},
		},
		PrimaryKey: []string{"id"},
		Rules: []Rule{
			{Attributes: []string{"name"}, Kind: RuleRequired},
		},
	}

	project := &Model{
		Name:  "project",
		Table: "projects",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "name", Type: TypeText},
			{Name: "contact_id", Type: TypeText},
		},
		PrimaryKey: []string{"id"},
		Rules: []Rule{
			{Attributes: []string{"name"}, Kind: RuleRequired},
		},
		Relations: map[string]*types.RelationMeta{
			"owner": {
				Kind:              types.RelationSingle,
				RelatedModel:      "contact",
				RelatedForm:       "contact",
				RelatedPrimaryKey: []string{"id"},
				Link:              map[string]string{"id": "contact_id"},
			},
			"tasks": {
				Kind:              types.RelationMultiple,
				RelatedModel:      "task",
				RelatedForm:       "task",
				RelatedPrimaryKey: []string{"id"},
				Link:              map[string]string{"project_id": "id"},
			},
			"tags": {
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
		},
		SaveRelations: &relations.Config{
			Relations: []relations.Declaration{
				relations.Rel("owner"),
				{Name: "tasks", Options: map[string]any{
					relations.OptionCascadeDelete: true,
				}},
				{Name: "tags", Options: map[string]any{
					relations.OptionExtraColumns: map[string]any{"tagged_at": "2026-08-26"},
				}},
			},
		},
	}

	return []*Model{contact, task, tag, project}
}

// newTestBackend registers the test schema and attaches against a temp dir.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	for _, m := range testModels() {
		require.NoError(t, b.RegisterModel(m))
	}
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func TestBackendAttachCreatesDatabase(t *testing.T) {
	b := NewBackend()
	for _, m := range testModels() {
		require.NoError(t, b.RegisterModel(m))
	}
	dataDir := t.TempDir()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}))
	defer b.Detach()

	assert.True(t, b.Attached())
	_, err := os.Stat(filepath.Join(dataDir, databaseFile))
	assert.NoError(t, err)
}

func TestBackendAttachTwiceFails(t *testing.T) {
	b := newTestBackend(t)
	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)
}

func TestBackendAttachRejectsUnknownBackend(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestBackendDetach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.RegisterModel(testModels()[0]))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	require.NoError(t, b.Detach())
	assert.False(t, b.Attached())

	err := b.Detach()
	assert.ErrorIs(t, err, types.ErrBackendDetached)

	_, err = b.Find("contact", map[string]any{"id": "x"})
	assert.ErrorIs(t, err, types.ErrBackendDetached)
}

func TestRegisterModelRejectsDuplicates(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.RegisterModel(testModels()[0]))
	err := b.RegisterModel(testModels()[0])
	assert.ErrorIs(t, err, types.ErrDuplicateModel)
}

func TestRegisterModelValidatesDefinition(t *testing.T) {
	b := NewBackend()

	err := b.RegisterModel(&Model{Name: "broken", Table: "broken"})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	err = b.RegisterModel(&Model{
		Name:       "nokey",
		Table:      "nokey",
		Columns:    []Column{{Name: "id", Type: TypeText}},
		PrimaryKey: []string{"missing"},
	})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	err = b.RegisterModel(&Model{
		Name:       "badcol",
		Table:      "badcol",
		Columns:    []Column{{Name: "id", Type: "uuid"}},
		PrimaryKey: []string{"id"},
	})
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestRegisterModelRejectsBadRelationConfig(t *testing.T) {
	b := NewBackend()
	err := b.RegisterModel(&Model{
		Name:       "broken",
		Table:      "broken",
		Columns:    []Column{{Name: "id", Type: TypeText}},
		PrimaryKey: []string{"id"},
		SaveRelations: &relations.Config{
			Relations: []relations.Declaration{
				{Name: "things", Options: map[string]any{"cascade": true}},
			},
		},
	})
	assert.ErrorIs(t, err, types.ErrUnknownRelationOption)
}

func TestBackendModelUnknown(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.Model("sprint")
	assert.ErrorIs(t, err, types.ErrModelUnknown)
	_, err = b.NewRecord("sprint")
	assert.ErrorIs(t, err, types.ErrModelUnknown)
}

func TestRegisterModelAfterAttachCreatesTable(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.RegisterModel(&Model{
		Name:       "note",
		Table:      "notes",
		Columns:    []Column{{Name: "id", Type: TypeText}, {Name: "body", Type: TypeText}},
		PrimaryKey: []string{"id"},
	}))

	rec, err := b.NewRecord("note")
	require.NoError(t, err)
	rec.Set("body", "late registration")
	require.NoError(t, rec.Save())

	all, err := b.FindAll("note", nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
