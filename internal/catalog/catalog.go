// Package catalog loads the static clip catalog matched against chat input.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/medbot-api/internal/model"
)

// entry accepts both "id" and the older "file" key for the clip reference.
type entry struct {
	ID          string `json:"id"`
	File        string `json:"file"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Load reads a JSON array of catalog entries from path.
func Load(path string) ([]model.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document. Entries keep their file
// order, which breaks ties between equal match scores.
func Parse(data []byte) ([]model.CatalogEntry, error) {
	var raw []entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	validate := validator.New()
	seen := make(map[string]int, len(raw))
	entries := make([]model.CatalogEntry, 0, len(raw))

	for i, e := range raw {
		id := e.ID
		if id == "" {
			id = e.File
		}
		ce := model.CatalogEntry{ID: id, Name: e.Name, Description: e.Description}

		if err := validate.Struct(ce); err != nil {
			return nil, fmt.Errorf("invalid catalog entry %d: %w", i, err)
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate catalog id %q at entries %d and %d", id, prev, i)
		}
		seen[id] = i
		entries = append(entries, ce)
	}

	return entries, nil
}
