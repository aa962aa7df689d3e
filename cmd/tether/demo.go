// Demo schema for the tether CLI: projects with an owner contact, direct
// tasks, and tagged through a junction table carrying an audit column.
package main

import (
	"time"

	"github.com/mesh-intelligence/tether/internal/activerecord"
	"github.com/mesh-intelligence/tether/pkg/relations"
	"github.com/mesh-intelligence/tether/pkg/types"
)

// demoModels builds the model catalog registered by every command.
func demoModels() []*activerecord.Model {
	contact := &activerecord.Model{
		Name:  "contact",
		Table: "contacts",
		Columns: []activerecord.Column{
			{Name: "id", Type: activerecord.TypeText},
			{Name: "name", Type: activerecord.TypeText},
			{Name: "email", Type: activerecord.TypeText},
		},
		PrimaryKey: []string{"id"},
		Rules: []activerecord.Rule{
			{Attributes: []string{"name"}, Kind: activerecord.RuleRequired},
			{Attributes: []string{"name"}, Kind: activerecord.RuleLength, Max: 120},
		},
	}

	task := &activerecord.Model{
		Name:  "task",
		Table: "tasks",
		Columns: []activerecord.Column{
			{Name: "id", Type: activerecord.TypeText},
			{Name: "project_id", Type: activerecord.TypeText},
			{Name: "title", Type: activerecord.TypeText},
			{Name: "done", Type: activerecord.TypeBool},
		},
		PrimaryKey: []string{"id"},
		Rules: []activerecord.Rule{
			{Attributes: []string{"title"}, Kind: activerecord.RuleRequired},
		},
	}

	tag := &activerecord.Model{
		Name:  "tag",
		Table: "tags",
		Columns: []activerecord.Column{
			{Name: "id", Type: activerecord.TypeText},
			{Name: "name", Type: activerecord.TypeText},
		},
		PrimaryKey: []string{"id"},
		Rules: []activerecord.Rule{
			{Attributes: []string{"name"}, Kind: activerecord.RuleRequired},
			{Attributes: []string{"name"}, Kind: activerecord.RuleLength, Max: 40},
		},
	}

	project := &activerecord.Model{
		Name:  "project",
		Table: "projects",
		Columns: []activerecord.Column{
			{Name: "id", Type: activerecord.TypeText},
			{Name: "name", Type: activerecord.TypeText},
			{Name: "contact_id", Type: activerecord.TypeText},
		},
		PrimaryKey: []string{"id"},
		Rules: []activerecord.Rule{
			{Attributes: []string{"name"}, Kind: activerecord.RuleRequired},
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
					relations.OptionExtraColumns: relations.ExtraColumnsFunc(func(types.Record) map[string]any {
						return map[string]any{"tagged_at": time.Now().UTC().Format(time.RFC3339)}
					}),
				}},
			},
		},
	}

	return []*activerecord.Model{contact, task, tag, project}
}
