// Package manifest reads declarative resource manifests from a directory
// tree laid out as <root>/<product>/<version>/pattern-<n>/*.yaml and parses
// them into typed resource sets.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neomorfeo/provisr/internal/domain"
)

// Compile-time check: Store implements domain.DescriptorStore.
var _ domain.DescriptorStore = (*Store)(nil)

// Store resolves deployment keys against a manifest root directory.
type Store struct {
	root string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Dir returns the manifest directory for a key.
func (s *Store) Dir(key domain.DeploymentKey) string {
	return filepath.Join(s.root, key.Product, key.Version, fmt.Sprintf("pattern-%d", key.Pattern))
}

// Resolve parses every .yaml file in the key's directory into a resource
// set. A missing directory is a client fault (the caller named a pattern
// that does not exist); a document without a kind is a server fault, the
// environment shipped a malformed manifest.
func (s *Store) Resolve(key domain.DeploymentKey) (domain.ResourceSet, error) {
	dir := s.Dir(key)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ResourceSet{}, domain.ClientFaultf(domain.CodeManifestsNotFound,
				"no manifest directory for %s", key)
		}
		return domain.ResourceSet{}, domain.ServerFault(domain.CodeManifestMalformed,
			"reading manifest directory", err)
	}

	var set domain.ResourceSet
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		if err := s.parseFile(filepath.Join(dir, entry.Name()), &set); err != nil {
			return domain.ResourceSet{}, err
		}
	}

	if set.Empty() {
		return domain.ResourceSet{}, domain.ClientFaultf(domain.CodeManifestsNotFound,
			"manifest directory for %s holds no managed resources", key)
	}
	return set, nil
}

// parseFile decodes every document in a (possibly multi-document) YAML file
// and classifies each into the set.
func (s *Store) parseFile(path string, set *domain.ResourceSet) error {
	f, err := os.Open(path)
	if err != nil {
		return domain.ServerFault(domain.CodeManifestMalformed, "opening manifest", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return domain.ServerFault(domain.CodeManifestMalformed,
				fmt.Sprintf("parsing manifest %s", filepath.Base(path)), err)
		}
		if doc == nil {
			continue
		}
		if err := classify(doc, path, set); err != nil {
			return err
		}
	}
}

// classify reads the top-level kind discriminator. A list document is
// split: each items[] entry is reclassified individually by its own kind.
func classify(doc map[string]any, path string, set *domain.ResourceSet) error {
	kind, err := kindOf(doc, path)
	if err != nil {
		return err
	}

	if kind == domain.ManifestList {
		items, _ := doc["items"].([]any)
		for _, item := range items {
			inner, ok := item.(map[string]any)
			if !ok {
				return malformed(path, "list item is not a document")
			}
			innerKind, err := kindOf(inner, path)
			if err != nil {
				return err
			}
			set.Add(domain.Resource{Kind: innerKind, Name: nameOf(inner), Doc: inner})
		}
		return nil
	}

	set.Add(domain.Resource{Kind: kind, Name: nameOf(doc), Doc: doc})
	return nil
}

func kindOf(doc map[string]any, path string) (domain.ManifestKind, error) {
	raw, ok := doc["kind"]
	if !ok {
		return "", malformed(path, "document has no kind field")
	}
	kind, ok := raw.(string)
	if !ok || kind == "" {
		return "", malformed(path, "kind field is not a string")
	}
	return domain.ManifestKind(strings.ToLower(kind)), nil
}

func nameOf(doc map[string]any) string {
	meta, _ := doc["metadata"].(map[string]any)
	name, _ := meta["name"].(string)
	return name
}

func malformed(path, msg string) error {
	return domain.ServerFault(domain.CodeManifestMalformed,
		fmt.Sprintf("%s: %s", filepath.Base(path), msg), nil)
}
