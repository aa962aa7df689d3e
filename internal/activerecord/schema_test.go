package activerecord

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tether/pkg/types"
)

const catalogYAML = `
models:
  - name: author
    table: authors
    columns:
      - name: id
        type: text
      - name: name
        type: text
    primary_key: [id]
    rules:
      - attributes: [name]
        kind: required
  - name: book
    table: books
    columns:
      - name: id
        type: text
      - name: title
        type: text
      - name: author_id
        type: text
    primary_key: [id]
    rules:
      - attributes: [title]
        kind: required
      - attributes: [title]
        kind: length
        max: 80
    labels:
      author_id: Author
    relations:
      author:
        kind: single
        model: author
        primary_key: [id]
        link:
          id: author_id
    save_relations:
      - name: author
        cascade_delete: true
`

func TestLoadModelsParsesCatalog(t *testing.T) {
	models, err := LoadModels(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	require.Len(t, models, 2)

	book := models[1]
	assert.Equal(t, "book", book.Name)
	assert.Equal(t, "books", book.Table)
	assert.Equal(t, []string{"id"}, book.PrimaryKey)
	require.Len(t, book.Rules, 2)
	assert.Equal(t, RuleLength, book.Rules[1].Kind)
	assert.Equal(t, float64(80), book.Rules[1].Max)
	assert.Equal(t, "Author", book.Labels["author_id"])

	meta, ok := book.Relations["author"]
	require.True(t, ok)
	assert.Equal(t, types.RelationSingle, meta.Kind)
	assert.Equal(t, "author", meta.RelatedModel)
	assert.Equal(t, "author", meta.RelatedForm, "form defaults to the related model")
	assert.Equal(t, map[string]string{"id": "author_id"}, meta.Link)

	require.NotNil(t, book.SaveRelations)
	require.Len(t, book.SaveRelations.Relations, 1)
	decl := book.SaveRelations.Relations[0]
	assert.Equal(t, "author", decl.Name)
	assert.Equal(t, true, decl.Options["cascadeDelete"])
}

func TestLoadModelsRejectsUnknownFields(t *testing.T) {
	_, err := LoadModels(strings.NewReader(`
models:
  - name: author
    table: authors
    colums:
      - name: id
        type: text
`))
	require.Error(t, err)
}

func TestLoadModelsRejectsEmptyCatalog(t *testing.T) {
	_, err := LoadModels(strings.NewReader(`models: []`))
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestLoadedCatalogRegistersAndSaves(t *testing.T) {
	models, err := LoadModels(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	b := NewBackend()
	for _, m := range models {
		require.NoError(t, b.RegisterModel(m))
	}
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	defer b.Detach()

	book, err := b.NewRecord("book")
	require.NoError(t, err)
	require.NoError(t, book.Load(map[string]any{
		"title":  "The Analytical Engine",
		"author": map[string]any{"name": "Ada"},
	}))
	require.NoError(t, book.Save())

	assert.NotNil(t, book.Get("author_id"))
	authors, err := b.FindAll("author", nil)
	require.NoError(t, err)
	assert.Len(t, authors, 1)
}
