package activerecord

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tether/pkg/relations"
	"github.com/mesh-intelligence/tether/pkg/types"
)

// schemaFile is the YAML shape of a model catalog.
type schemaFile struct {
	Models []schemaModel `yaml:"models"`
}

type schemaModel struct {
	Name          string                    `yaml:"name"`
	Table         string                    `yaml:"table"`
	Form          string                    `yaml:"form"`
	Columns       []schemaColumn            `yaml:"columns"`
	PrimaryKey    []string                  `yaml:"primary_key"`
	Rules         []schemaRule              `yaml:"rules"`
	Relations     map[string]schemaRelation `yaml:"relations"`
	Safe          []string                  `yaml:"safe"`
	Labels        map[string]string         `yaml:"labels"`
	SaveRelations []schemaDeclaration       `yaml:"save_relations"`
}

type schemaColumn struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type schemaRule struct {
	Attributes []string `yaml:"attributes"`
	Kind       string   `yaml:"kind"`
	Min        float64  `yaml:"min"`
	Max        float64  `yaml:"max"`
	On         []string `yaml:"on"`
}

type schemaRelation struct {
	Kind       string            `yaml:"kind"`
	Model      string            `yaml:"model"`
	Form       string            `yaml:"form"`
	PrimaryKey []string          `yaml:"primary_key"`
	Link       map[string]string `yaml:"link"`
	Via        *schemaJunction   `yaml:"via"`
}

type schemaJunction struct {
	Table        string            `yaml:"table"`
	OwnerLink    map[string]string `yaml:"owner_link"`
	RelatedLink  map[string]string `yaml:"related_link"`
	ExtraColumns []string          `yaml:"extra_columns"`
}

type schemaDeclaration struct {
	Name          string         `yaml:"name"`
	Scenario      string         `yaml:"scenario"`
	CascadeDelete bool           `yaml:"cascade_delete"`
	ExtraColumns  map[string]any `yaml:"extra_columns"`
}

// LoadModels parses a YAML model catalog. Unknown YAML fields are rejected
// so schema typos fail at load time, not silently at save time.
func LoadModels(r io.Reader) ([]*Model, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file schemaFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding model catalog: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("%w: model catalog defines no models", types.ErrInvalidData)
	}

	models := make([]*Model, 0, len(file.Models))
	for _, sm := range file.Models {
		m, err := sm.toModel()
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// LoadModelsFile parses the YAML model catalog at path.
func LoadModelsFile(path string) ([]*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model catalog: %w", err)
	}
	defer f.Close()
	return LoadModels(f)
}

func (sm schemaModel) toModel() (*Model, error) {
	m := &Model{
		Name:       sm.Name,
		Table:      sm.Table,
		Form:       sm.Form,
		PrimaryKey: sm.PrimaryKey,
		Safe:       sm.Safe,
		Labels:     sm.Labels,
	}
	for _, col := range sm.Columns {
		m.Columns = append(m.Columns, Column{Name: col.Name, Type: col.Type})
	}
	for _, rule := range sm.Rules {
		m.Rules = append(m.Rules, Rule{
			Attributes: rule.Attributes,
			Kind:       rule.Kind,
			Min:        rule.Min,
			Max:        rule.Max,
			On:         rule.On,
		})
	}

	if len(sm.Relations) > 0 {
		m.Relations = make(map[string]*types.RelationMeta, len(sm.Relations))
		for name, sr := range sm.Relations {
			meta := &types.RelationMeta{
				Name:              name,
				Kind:              sr.Kind,
				RelatedModel:      sr.Model,
				RelatedForm:       sr.Form,
				RelatedPrimaryKey: sr.PrimaryKey,
				Link:              sr.Link,
			}
			if meta.RelatedForm == "" {
				meta.RelatedForm = sr.Model
			}
			if sr.Via != nil {
				meta.Via = &types.JunctionMeta{
					Table:        sr.Via.Table,
					OwnerLink:    sr.Via.OwnerLink,
					RelatedLink:  sr.Via.RelatedLink,
					ExtraColumns: sr.Via.ExtraColumns,
				}
			}
			m.Relations[name] = meta
		}
	}

	if len(sm.SaveRelations) > 0 {
		cfg := &relations.Config{}
		for _, decl := range sm.SaveRelations {
			options := make(map[string]any)
			if decl.Scenario != "" {
				options[relations.OptionScenario] = decl.Scenario
			}
			if decl.CascadeDelete {
				options[relations.OptionCascadeDelete] = true
			}
			if decl.ExtraColumns != nil {
				options[relations.OptionExtraColumns] = decl.ExtraColumns
			}
			if len(options) == 0 {
				options = nil
			}
			cfg.Relations = append(cfg.Relations, relations.Declaration{
				Name:    decl.Name,
				Options: options,
			})
		}
		m.SaveRelations = cfg
	}
	return m, nil
}
