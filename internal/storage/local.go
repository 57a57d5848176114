package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/golang/snappy"
)

// LocalStorage implements ObjectStorage on the local filesystem, with
// snappy-compressed payloads. This is primarily used for testing and
// development.
type LocalStorage struct {
	basePath string
	mu       sync.RWMutex
	metadata map[string]map[string]string
}

// NewLocalStorage creates a new local filesystem storage rooted at basePath.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("storage: failed to create base directory: %w", err)
	}
	return &LocalStorage{
		basePath: basePath,
		metadata: make(map[string]map[string]string),
	}, nil
}

// Store writes the compressed payload under the key.
func (l *LocalStorage) Store(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := l.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	compressed := snappy.Encode(nil, data)
	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	if metadata != nil {
		meta, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreFailed, err)
		}
		if err := os.WriteFile(path+".meta", meta, 0644); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreFailed, err)
		}
	}

	l.mu.Lock()
	l.metadata[key] = metadata
	l.mu.Unlock()
	return nil
}

// Retrieve reads and decompresses the payload stored under the key.
func (l *LocalStorage) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(l.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrRetrieveFailed, err)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieveFailed, err)
	}
	return data, nil
}

// List returns all keys under the prefix in sorted order.
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.Walk(l.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".meta") {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieveFailed, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the object and its metadata sidecar.
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := l.fullPath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	_ = os.Remove(path + ".meta")

	l.mu.Lock()
	delete(l.metadata, key)
	l.mu.Unlock()
	return nil
}

// Exists checks whether an object exists under the key.
func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(l.fullPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Metadata returns the metadata stored alongside a key, if any.
func (l *LocalStorage) Metadata(key string) map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.metadata[key]
}

func (l *LocalStorage) fullPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}
