// Package cache is a file-backed key-value store for crawled metadata.
//
// Entries are addressed by (namespace, name, version). Names are PEP 503
// canonical and therefore filesystem-safe, so they become directories
// directly, which lets callers enumerate cached names and evict a whole
// project in one operation. Version strings can contain arbitrary
// characters, so they are hashed with SHA-256 for the filename.
//
// Multiple instances (even in different processes) can share the same
// directory; the filesystem provides atomic file operations.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PkgInfoNamespace holds per-release core metadata written by the crawler.
const PkgInfoNamespace = "pkg-info"

type Cache struct {
	dir string
}

// New creates a Cache rooted at dir, creating the directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the absolute path to the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Get retrieves a cached value and unmarshals it into v. It returns
// (false, nil) on a miss, leaving v unchanged.
func (c *Cache) Get(namespace, name, version string, v any) (bool, error) {
	data, err := os.ReadFile(c.entryPath(namespace, name, version))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Set stores a value, overwriting any existing entry for the same key.
func (c *Cache) Set(namespace, name, version string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dir := filepath.Join(c.dir, namespace, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.entryPath(namespace, name, version), data, 0o644)
}

// Delete removes a single entry. Deleting a missing entry is a no-op.
func (c *Cache) Delete(namespace, name, version string) error {
	err := os.Remove(c.entryPath(namespace, name, version))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DeleteAll removes every cached entry for a name within a namespace. It is
// the eviction path used when the upstream index stops listing a project.
func (c *Cache) DeleteAll(namespace, name string) error {
	return os.RemoveAll(filepath.Join(c.dir, namespace, name))
}

// Names lists the names that have at least one cached entry in namespace.
func (c *Cache) Names(namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.dir, namespace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// CountEntries reports the total number of cached entries in namespace.
func (c *Cache) CountEntries(namespace string) (int, error) {
	names, err := c.Names(namespace)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, name := range names {
		entries, err := os.ReadDir(filepath.Join(c.dir, namespace, name))
		if err != nil {
			return 0, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				total++
			}
		}
	}
	return total, nil
}

func (c *Cache) entryPath(namespace, name, version string) string {
	h := sha256.Sum256([]byte(version))
	return filepath.Join(c.dir, namespace, name, hex.EncodeToString(h[:])+".json")
}
