// Package cache keeps parsed datasets and loaded classifiers for the life of
// the process so repeated interactions with the same source skip reloading.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/KaramelBytes/labelsift/internal/classify"
	"github.com/KaramelBytes/labelsift/internal/dataset"
)

// Store is a read-through cache. Failed loads are never stored. It is safe
// for concurrent use.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*dataset.Dataset
	models   map[string]classify.Classifier
	handles  map[string]*dataset.Dataset
	hits     int
	misses   int
}

// Stats is a snapshot of store occupancy and lookups.
type Stats struct {
	Datasets int
	Models   int
	Handles  int
	Hits     int
	Misses   int
}

func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset drops every entry.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = make(map[string]*dataset.Dataset)
	s.models = make(map[string]classify.Classifier)
	s.handles = make(map[string]*dataset.Dataset)
	s.hits, s.misses = 0, 0
}

// Dataset returns the dataset cached under key, calling load on a miss.
// Cached datasets are shared and must not be modified.
func (s *Store) Dataset(key string, load func() (*dataset.Dataset, error)) (*dataset.Dataset, error) {
	return readThrough(s, func(s *Store) map[string]*dataset.Dataset { return s.datasets }, key, load)
}

// Classifier returns the classifier cached under key, calling load on a miss.
func (s *Store) Classifier(key string, load func() (classify.Classifier, error)) (classify.Classifier, error) {
	return readThrough(s, func(s *Store) map[string]classify.Classifier { return s.models }, key, load)
}

func readThrough[V any](s *Store, table func(*Store) map[string]V, key string, load func() (V, error)) (V, error) {
	s.mu.RLock()
	v, ok := table(s)[key]
	s.mu.RUnlock()
	if ok {
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		return v, nil
	}
	v, err := load()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses++
	if err != nil {
		var zero V
		return zero, err
	}
	// a concurrent load may have won; keep the first value
	m := table(s)
	if prev, ok := m[key]; ok {
		return prev, nil
	}
	m[key] = v
	return v, nil
}

// Put stores ds under a fresh handle and returns it.
func (s *Store) Put(ds *dataset.Dataset) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.handles[id] = ds
	s.mu.Unlock()
	return id
}

// Get returns the dataset stored under handle id.
func (s *Store) Get(id string) (*dataset.Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.handles[id]
	return ds, ok
}

// Stats reports current counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Datasets: len(s.datasets),
		Models:   len(s.models),
		Handles:  len(s.handles),
		Hits:     s.hits,
		Misses:   s.misses,
	}
}

// SourceKey identifies a named source by name and bytes. The name picks the
// format and the export prefix, so equal bytes under another name are a
// different entry.
func SourceKey(name string, data []byte) string {
	h := sha1.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RefKey identifies a remote reference without fetching it.
func RefKey(ref string) string {
	h := sha1.Sum([]byte("ref|" + ref))
	return hex.EncodeToString(h[:])
}

// FileKey identifies a local file by absolute path, size and modification
// time, so an edited file is read again.
func FileKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	h := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d", abs, fi.Size(), fi.ModTime().UnixNano())))
	return hex.EncodeToString(h[:]), nil
}
