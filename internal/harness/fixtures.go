package harness

import (
	"bytes"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docsql/internal/docstore/memstore"
)

// LoadFixtures reads a YAML mapping of collection name to documents, the
// same shape as a scenario's fixtures block.
func LoadFixtures(path string) (map[string][]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}
	var fixtures map[string][]Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&fixtures); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return fixtures, nil
}

// SeedFixtures inserts fixtures into st in collection name order.
func SeedFixtures(st *memstore.Store, fixtures map[string][]Document) error {
	for _, coll := range sortedKeys(fixtures) {
		docs := make([]bson.D, len(fixtures[coll]))
		for i, d := range fixtures[coll] {
			docs[i] = bson.D(d)
		}
		if err := st.Seed(coll, docs...); err != nil {
			return fmt.Errorf("collection %s: %w", coll, err)
		}
	}
	return nil
}
