package activerecord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tether/pkg/types"
)

func relatedIDs(t *testing.T, rec *Record, relation string) []string {
	t.Helper()
	records, ok := rec.Relation(relation).([]types.Record)
	require.True(t, ok, "relation %s is not a collection", relation)
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Get("id").(string))
	}
	return ids
}

func TestSaveProjectWithAllRelations(t *testing.T) {
	b := newTestBackend(t)

	project, err := b.NewRecord("project")
	require.NoError(t, err)
	require.NoError(t, project.Load(map[string]any{
		"name":  "Tether",
		"owner": map[string]any{"name": "Ada", "email": "ada@example.com"},
		"tasks": []any{
			map[string]any{"title": "design schema"},
			map[string]any{"title": "write tests"},
		},
		"tags": []any{
			map[string]any{"name": "storage"},
		},
	}))
	require.NoError(t, project.Save())

	// Owner was eager-saved and its key copied onto the project.
	assert.NotNil(t, project.Get("contact_id"))
	contacts, err := b.FindAll("contact", nil)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, contacts[0].Get("id"), project.Get("contact_id"))

	// Tasks carry the project foreign key.
	tasks, err := b.FindAll("task", map[string]any{"project_id": project.Get("id")})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	// The junction row resolves the tag from a fresh record.
	reloaded, err := b.Find("project", map[string]any{"id": project.Get("id")})
	require.NoError(t, err)
	tagIDs := relatedIDs(t, reloaded, "tags")
	assert.Len(t, tagIDs, 1)

	owner, ok := reloaded.Relation("owner").(*Record)
	require.True(t, ok)
	assert.Equal(t, "Ada", owner.Get("name"))
}

func TestSaveLinksExistingRelatedByKey(t *testing.T) {
	b := newTestBackend(t)

	contact, err := b.NewRecord("contact")
	require.NoError(t, err)
	contact.Set("name", "Grace")
	require.NoError(t, contact.Save())

	project, err := b.NewRecord("project")
	require.NoError(t, err)
	project.Set("name", "Compilers")
	require.NoError(t, project.SetRelation("owner", contact.Get("id")))
	require.NoError(t, project.Save())

	assert.Equal(t, contact.Get("id"), project.Get("contact_id"))
	contacts, err := b.FindAll("contact", nil)
	require.NoError(t, err)
	assert.Len(t, contacts, 1, "existing contact reused, not duplicated")
}

func TestSaveSynchronizesCollectionMembership(t *testing.T) {
	b := newTestBackend(t)

	project, err := b.NewRecord("project")
	require.NoError(t, err)
	require.NoError(t, project.Load(map[string]any{
		"name": "Tether",
		"tasks": []any{
			map[string]any{"title": "one"},
			map[string]any{"title": "two"},
		},
	}))
	require.NoError(t, project.Save())

	kept := relatedIDs(t, project, "tasks")
	require.Len(t, kept, 2)

	// Keep the first task only: the second is unlinked, its row survives
	// with the foreign key cleared.
	require.NoError(t, project.SetRelation("tasks", []any{kept[0]}))
	require.NoError(t, project.Save())

	current := relatedIDs(t, project, "tasks")
	assert.Equal(t, []string{kept[0]}, current)

	orphan, err := b.Find("task", map[string]any{"id": kept[1]})
	require.NoError(t, err)
	assert.Nil(t, orphan.Get("project_id"))
}

func TestSaveRemovesJunctionRowKeepsTag(t *testing.T) {
	b := newTestBackend(t)

	project, err := b.NewRecord("project")
	require.NoError(t, err)
	require.NoError(t, project.Load(map[string]any{
		"name": "Tether",
		"tags": []any{
			map[string]any{"name": "storage"},
			map[string]any{"name": "orm"},
		},
	}))
	require.NoError(t, project.Save())

	tagIDs := relatedIDs(t, project, "tags")
	require.Len(t, tagIDs, 2)

	require.NoError(t, project.SetRelation("tags", []any{tagIDs[0]}))
	require.NoError(t, project.Save())

	assert.Equal(t, []string{tagIDs[0]}, relatedIDs(t, project, "tags"))

	// The unlinked tag row itself survives.
	_, err = b.Find("tag", map[string]any{"id": tagIDs[1]})
	assert.NoError(t, err)
}

func TestSaveFailsAndRollsBackOnInvalidRelated(t *testing.T) {
	b := newTestBackend(t)

	project, err := b.NewRecord("project")
	require.NoError(t, err)
	require.NoError(t, project.Load(map[string]any{
		"name":  "Tether",
		"owner": map[string]any{"name": "Ada"},
		"tasks": []any{
			map[string]any{"done": true},
		},
	}))

	err = project.Save()
	assert.ErrorIs(t, err, types.ErrValidationFailed)
	assert.True(t, project.IsNew(), "owner row must not be written")
	assert.Contains(t, project.Errors(), "tasks")

	contacts, err := b.FindAll("contact", nil)
	require.NoError(t, err)
	assert.Empty(t, contacts, "eager-saved contact must be rolled back")

	projects, err := b.FindAll("project", nil)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestDeleteCascadesFlaggedRelations(t *testing.T) {
	b := newTestBackend(t)

	project, err := b.NewRecord("project")
	require.NoError(t, err)
	require.NoError(t, project.Load(map[string]any{
		"name": "Tether",
		"tasks": []any{
			map[string]any{"title": "one"},
			map[string]any{"title": "two"},
		},
		"tags": []any{
			map[string]any{"name": "storage"},
		},
	}))
	require.NoError(t, project.Save())

	require.NoError(t, project.Delete())

	tasks, err := b.FindAll("task", nil)
	require.NoError(t, err)
	assert.Empty(t, tasks, "cascade-flagged tasks deleted with the project")

	tags, err := b.FindAll("tag", nil)
	require.NoError(t, err)
	assert.Len(t, tags, 1, "unflagged tags survive")
}

func TestRelationLazyLoadOnNewRecord(t *testing.T) {
	b := newTestBackend(t)

	project, err := b.NewRecord("project")
	require.NoError(t, err)
	assert.Nil(t, project.Relation("owner"))
	records, ok := project.Relation("tasks").([]types.Record)
	require.True(t, ok)
	assert.Empty(t, records)
}
