package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// ErrNotFound reports that no document exists at the requested key. It is
// distinct from a transport or backend failure: absence is a normal answer,
// a store error is not.
var ErrNotFound = fmt.Errorf("document not found")

// Store is a key-addressed JSON document store. Implementations return
// ErrNotFound for reads and merges on absent keys and treat deleting an
// absent key as success.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, doc []byte) error
	// Merge shallow-merges the fields of a JSON object into the document
	// at key. Merging into an absent document is ErrNotFound, never a
	// create.
	Merge(ctx context.Context, key string, fields []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// mergeJSON applies a shallow field merge of patch over doc. Backends
// without server-side JSON merge build on this.
func mergeJSON(doc, patch []byte) ([]byte, error) {
	var base, fields map[string]any
	if err := json.Unmarshal(doc, &base); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, fmt.Errorf("decoding patch: %w", err)
	}
	for k, v := range fields {
		base[k] = v
	}
	return json.Marshal(base)
}
