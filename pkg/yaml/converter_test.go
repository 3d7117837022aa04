package yaml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLToJSON(t *testing.T) {
	out, err := YAMLToJSON([]byte("services:\n  web:\n    image: nginx\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"services":{"web":{"image":"nginx"}}}`, string(out))
}

func TestToMap(t *testing.T) {
	doc, err := ToMap([]byte("version: \"3\"\nservices:\n  db:\n    image: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, "3", doc["version"])

	services, ok := doc["services"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, services, "db")

	empty, err := ToMap(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ToMap([]byte("- a\n- b\n"))
	assert.Error(t, err)
}

func TestUnmarshalYAML(t *testing.T) {
	var v struct {
		Name  string   `yaml:"name"`
		Files []string `yaml:"files"`
	}
	require.NoError(t, UnmarshalYAML([]byte("name: demo\nfiles: [a.yml, b.yml]\n"), &v))
	assert.Equal(t, "demo", v.Name)
	assert.Equal(t, []string{"a.yml", "b.yml"}, v.Files)
}
