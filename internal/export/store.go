package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/sentinel"
)

const refPrefix = "bundles/"

func bundleRef(tenantID id.TenantID, bundleID string) string {
	return refPrefix + tenantID.String() + "/" + bundleID + ".json"
}

// MemoryStore keeps bundles in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, tenantID id.TenantID, bundleID string, body []byte) (string, error) {
	ref := bundleRef(tenantID, bundleID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[ref] = append([]byte(nil), body...)
	return ref, nil
}

func (s *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.bundles[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), body...), nil
}

// FileStore writes bundles below a root directory, one file per bundle.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Put(_ context.Context, tenantID id.TenantID, bundleID string, body []byte) (string, error) {
	ref := bundleRef(tenantID, bundleID)
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create bundle directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("publish bundle: %w", err)
	}
	return ref, nil
}

func (s *FileStore) Get(_ context.Context, ref string) ([]byte, error) {
	clean := filepath.ToSlash(filepath.Clean(ref))
	if !strings.HasPrefix(clean, refPrefix) || strings.Contains(clean, "..") {
		return nil, sentinel.ErrNotFound
	}
	body, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return body, nil
}
