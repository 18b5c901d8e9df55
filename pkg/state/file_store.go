package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/goliatone/go-stratabase/pkg/jsontext"
)

// FileStore persists each layer snapshot as one JSON file under Root, at the
// path given by Ref.Identifier():
//
//	{"meta": {...}, "layer": {"BaselineData": {...}, "OverrideLayers": []}}
type FileStore struct {
	Root string
	mu   sync.Mutex
}

// NewFileStore returns a store rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

func (s *FileStore) path(ref Ref) (string, error) {
	key, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("state: invalid key %q", key)
		}
	}
	return filepath.Join(s.Root, filepath.FromSlash(key)) + ".json", nil
}

func (s *FileStore) Load(_ context.Context, ref Ref) (Layer, Meta, bool, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}
	s.mu.Lock()
	raw, err := os.ReadFile(path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: read %s: %w", path, err)
	}

	result := jsontext.ParseDocument(string(raw))
	if result.HasErrors() {
		return nil, Meta{}, false, fmt.Errorf("state: parse %s: %w", path, result.Err())
	}
	tree := result.Tree
	var meta Meta
	if node, ok := tree.Lookup(tree.Root(), "meta"); ok && !tree.IsNull(node) {
		if err := json.Unmarshal([]byte(tree.Text(node)), &meta); err != nil {
			return nil, Meta{}, false, fmt.Errorf("state: meta in %s: %w", path, err)
		}
	}
	node, ok := tree.Lookup(tree.Root(), "layer")
	if !ok {
		return nil, Meta{}, false, fmt.Errorf("state: %s has no layer", path)
	}
	layer, err := DecodeLayer(tree.Text(node))
	if err != nil {
		return nil, Meta{}, false, err
	}
	return layer, meta, true, nil
}

func (s *FileStore) Save(_ context.Context, ref Ref, snapshot Layer, meta Meta) (Meta, error) {
	path, err := s.path(ref)
	if err != nil {
		return Meta{}, err
	}
	layer, err := EncodeLayer(snapshot)
	if err != nil {
		return Meta{}, err
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode meta: %w", err)
	}

	doc := jsontext.NewDocumentBuilder(jsontext.WithIndent("  "))
	doc.AddProperty("meta", jsontext.Literal(rawMeta))
	doc.AddProperty("layer", jsontext.Literal(layer))
	result := doc.Finalize()
	if err := result.Err(); err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return Meta{}, fmt.Errorf("state: create dirs for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(result.Tree.Source), 0o644); err != nil {
		return Meta{}, fmt.Errorf("state: write %s: %w", path, err)
	}
	glog.V(2).Infof("[state] saved %s (%d bytes)\n", path, len(result.Tree.Source))
	return cloneMeta(meta), nil
}
