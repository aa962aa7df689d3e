package relations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tether/pkg/types"
)

func TestNewRegistryParsesOptions(t *testing.T) {
	reg, err := NewRegistry(Config{
		Relations: []Declaration{
			Rel("owner"),
			{Name: "tasks", Options: map[string]any{
				OptionCascadeDelete: true,
				OptionScenario:      "project",
			}},
			{Name: "tags", Options: map[string]any{
				OptionExtraColumns: map[string]any{"tagged_at": "now"},
			}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"owner", "tasks", "tags"}, reg.Names())
	assert.True(t, reg.Declared("owner"))
	assert.False(t, reg.Declared("sprints"))
	assert.True(t, reg.CascadeDelete("tasks"))
	assert.False(t, reg.CascadeDelete("owner"))
	assert.True(t, reg.HasExtraColumns("tags"))
	assert.False(t, reg.HasExtraColumns("tasks"))
}

func TestNewRegistryRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name: "unknown option key",
			config: Config{Relations: []Declaration{
				{Name: "tasks", Options: map[string]any{"cascade": true}},
			}},
			wantErr: types.ErrUnknownRelationOption,
		},
		{
			name: "scenario must be a string",
			config: Config{Relations: []Declaration{
				{Name: "tasks", Options: map[string]any{OptionScenario: 7}},
			}},
			wantErr: types.ErrInvalidRelationOption,
		},
		{
			name: "cascadeDelete must be a bool",
			config: Config{Relations: []Declaration{
				{Name: "tasks", Options: map[string]any{OptionCascadeDelete: "yes"}},
			}},
			wantErr: types.ErrInvalidRelationOption,
		},
		{
			name: "extraColumns must be a map or provider func",
			config: Config{Relations: []Declaration{
				{Name: "tags", Options: map[string]any{OptionExtraColumns: 42}},
			}},
			wantErr: types.ErrInvalidRelationOption,
		},
		{
			name:    "unknown key mode",
			config:  Config{KeyMode: "attribute_name"},
			wantErr: types.ErrUnknownKeyMode,
		},
		{
			name:    "empty relation name",
			config:  Config{Relations: []Declaration{Rel("")}},
			wantErr: types.ErrInvalidRelationMeta,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.config)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewRegistryAcceptsProviderFuncs(t *testing.T) {
	_, err := NewRegistry(Config{Relations: []Declaration{
		{Name: "tags", Options: map[string]any{
			OptionExtraColumns: ExtraColumnsFunc(func(types.Record) map[string]any {
				return map[string]any{"rank": 1}
			}),
		}},
	}})
	require.NoError(t, err)

	_, err = NewRegistry(Config{Relations: []Declaration{
		{Name: "tags", Options: map[string]any{
			OptionExtraColumns: func(types.Record) map[string]any { return nil },
		}},
	}})
	require.NoError(t, err)
}
