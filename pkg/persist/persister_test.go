package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type persisterState struct {
	Label string `json:"label" yaml:"label"`
	Value int    `json:"value" yaml:"value"`
}

func TestPersister_SaveLoad(t *testing.T) {
	t.Parallel()

	for _, codec := range []Codec{NewJSONCodec(), NewYAMLCodec()} {
		t.Run(codec.Extension(), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			p := NewPersister[persisterState]("report", codec)

			original := persisterState{Label: "hello", Value: 42}
			require.NoError(t, p.Save(dir, &original))
			assert.Equal(t, filepath.Join(dir, "report"+codec.Extension()), p.Path(dir))
			assert.FileExists(t, p.Path(dir))

			restored, err := p.Load(dir)
			require.NoError(t, err)
			assert.Equal(t, original, *restored)
		})
	}
}

func TestPersister_LoadMissingFile(t *testing.T) {
	t.Parallel()

	p := NewPersister[persisterState]("missing", NewJSONCodec())

	restored, err := p.Load(t.TempDir())
	require.Error(t, err)
	assert.Nil(t, restored)
}
