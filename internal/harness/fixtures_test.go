package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/docsql/internal/docstore/memstore"
)

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
orders:
  - {_id: 1, item: ink}
people:
  - {_id: 7, name: ann, age: 31}
`), 0o644))

	fixtures, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, fixtures, 2)
	assert.Equal(t, Document{{Key: "_id", Value: 7}, {Key: "name", Value: "ann"}, {Key: "age", Value: 31}}, fixtures["people"][0])

	st := memstore.New()
	require.NoError(t, SeedFixtures(st, fixtures))
	assert.Equal(t, []bson.D{{{Key: "_id", Value: int32(7)}, {Key: "name", Value: "ann"}, {Key: "age", Value: int32(31)}}}, st.Documents("people"))
	assert.Len(t, st.Documents("orders"), 1)
}

func TestLoadFixtures_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFixtures(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read fixtures file")

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("people: {not: a list}\n"), 0o644))
	_, err = LoadFixtures(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse fixtures")
}

func TestSeedFixtures_DuplicateID(t *testing.T) {
	err := SeedFixtures(memstore.New(), map[string][]Document{
		"t": {{{Key: "_id", Value: 1}}, {{Key: "_id", Value: 1}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection t")
}
