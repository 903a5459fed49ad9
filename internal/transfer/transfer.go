// Package transfer reads and writes the JSON backup file of a local store.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/localnerve/crmsync/internal/localstore"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/types"
)

// FormatVersion is written to every export.
const FormatVersion = "2.0"

// ErrInvalidImport is returned, before anything is written, for files that
// cannot be decoded or carry no recognized collection.
var ErrInvalidImport = errors.New("invalid import file")

// ListCollections are the list-valued keys of an export, in file order.
var ListCollections = []string{
	models.CollectionProperties,
	models.CollectionClients,
	models.CollectionFollowups,
	models.CollectionSigns,
	models.CollectionExpenses,
	models.CollectionColleagues,
	models.CollectionSales,
	models.CollectionActivity,
}

// File is the export document.
type File struct {
	Properties json.RawMessage `json:"properties"`
	Clients    json.RawMessage `json:"clients"`
	Followups  json.RawMessage `json:"followups"`
	Signs      json.RawMessage `json:"signs"`
	Expenses   json.RawMessage `json:"expenses"`
	Colleagues json.RawMessage `json:"colleagues"`
	Sales      json.RawMessage `json:"sales"`
	Settings   json.RawMessage `json:"settings"`
	Activity   json.RawMessage `json:"activity"`
	ExportedAt string          `json:"exportedAt"`
	Version    string          `json:"version"`
}

// Export snapshots every local collection.
func Export(store *localstore.Store) (*File, error) {
	settings, err := json.Marshal(store.Settings())
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return &File{
		Properties: store.RawCollection(models.CollectionProperties),
		Clients:    store.RawCollection(models.CollectionClients),
		Followups:  store.RawCollection(models.CollectionFollowups),
		Signs:      store.RawCollection(models.CollectionSigns),
		Expenses:   store.RawCollection(models.CollectionExpenses),
		Colleagues: store.RawCollection(models.CollectionColleagues),
		Sales:      store.RawCollection(models.CollectionSales),
		Settings:   settings,
		Activity:   store.RawCollection(models.CollectionActivity),
		ExportedAt: store.Now(),
		Version:    FormatVersion,
	}, nil
}

// Write encodes the export of store to w.
func Write(w io.Writer, store *localstore.Store) error {
	file, err := Export(store)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(file)
}

// Decode parses an import file into the collections it carries. A list
// collection may be a single object instead of an array.
func Decode(r io.Reader) (map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	cols := make(map[string]json.RawMessage)
	for _, key := range ListCollections {
		raw, ok := top[key]
		if !ok {
			continue
		}
		var items types.FlexList[map[string]any]
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidImport, key, err)
		}
		encoded, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidImport, key, err)
		}
		cols[key] = encoded
	}

	if raw, ok := top[models.CollectionSettings]; ok {
		var settings map[string]any
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, fmt.Errorf("%w: settings: %v", ErrInvalidImport, err)
		}
		if settings != nil {
			encoded, _ := json.Marshal(settings)
			cols[models.CollectionSettings] = encoded
		}
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no recognized collection", ErrInvalidImport)
	}
	return cols, nil
}

// Import replaces every collection the file carries. It is not a wholesale
// restore: collections the file lacks keep their local contents, so a
// partial file only touches what it names. It returns the number of
// collections replaced.
func Import(r io.Reader, store *localstore.Store) (int, error) {
	cols, err := Decode(r)
	if err != nil {
		return 0, err
	}
	store.ImportCollections(cols)
	return len(cols), nil
}
