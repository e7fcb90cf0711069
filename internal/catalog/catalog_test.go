package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Len(t, c.Models, 8)
	assert.Equal(t, "GPT-4.1", c.Models[0].Value)
	assert.True(t, c.Has("Mistral small"))
	assert.False(t, c.Has("mistral small"))

	c.Models[0].Value = "mutated"
	assert.Equal(t, "GPT-4.1", Default().Models[0].Value)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - name: BART
  - name: Local Llama
    value: llama-local
    logo: /logos/meta.gif
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BART", "llama-local"}, c.Values())
	assert.Equal(t, "BART", c.Models[0].Name)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Models, 8)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	_, err := Parse([]byte("models: []\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("models:\n  - name: A\n  - value: A\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("models:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err)
}
