package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergeTestSchema(t *testing.T) *Schema {
	t.Helper()
	theme, err := NewEnumField("theme", "", true, strPtr("light"), []string{"light", "dark"})
	require.NoError(t, err)
	notifications, err := NewBooleanField("notifications", "", true, boolPtr(true))
	require.NoError(t, err)
	schema, err := NewSchema(theme, notifications)
	require.NoError(t, err)
	return schema
}

func TestMerge_NoLayersEqualsDefaults(t *testing.T) {
	schema := mergeTestSchema(t)
	assert.Equal(t, schema.DefaultValues(), Merge(schema))
}

func TestMerge_EmptySchemaYieldsEmptyMap(t *testing.T) {
	schema, err := NewSchema()
	require.NoError(t, err)
	assert.Empty(t, Merge(schema, map[string]any{}))
}

func TestMerge_LastLayerWins(t *testing.T) {
	schema := mergeTestSchema(t)
	merged := Merge(schema,
		map[string]any{"theme": "dark"},
		map[string]any{"theme": "light"},
	)
	assert.Equal(t, "light", merged["theme"])
}

func TestMerge_DisjointLayersUnion(t *testing.T) {
	schema := mergeTestSchema(t)
	merged := Merge(schema,
		map[string]any{"theme": "dark"},
		map[string]any{"beta_features": true},
	)
	assert.Equal(t, map[string]any{
		"theme":         "dark",
		"notifications": true,
		"beta_features": true,
	}, merged)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	schema := mergeTestSchema(t)
	layer := map[string]any{"theme": "dark"}

	merged := Merge(schema, layer)
	merged["theme"] = "mutated"
	merged["notifications"] = false

	assert.Equal(t, map[string]any{"theme": "dark"}, layer)
	assert.Equal(t, "light", schema.DefaultValues()["theme"])
}

func TestMerge_ThreeTierLayering(t *testing.T) {
	schema := mergeTestSchema(t)

	envDefault := map[string]any{"theme": "dark"}
	userOverride := map[string]any{"notifications": false}

	merged := Merge(schema, envDefault, userOverride)
	assert.Equal(t, map[string]any{
		"theme":         "dark",
		"notifications": false,
	}, merged)
}
