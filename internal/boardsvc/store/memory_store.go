package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/google/uuid"
)

type memFile struct {
	meta models.FileMeta
	body []byte
}

// MemoryStore keeps everything in process. Used by tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*memFile
	Now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]*memFile),
		Now:   time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	return append([]byte(nil), f.body...), nil
}

func (s *MemoryStore) GetMeta(ctx context.Context, id string) (models.FileMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return models.FileMeta{}, fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	return copyMeta(f.meta), nil
}

func (s *MemoryStore) Create(ctx context.Context, nf NewFile) (models.FileMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := models.FileMeta{
		ID:          uuid.New().String(),
		Name:        nf.Name,
		MimeType:    nf.MimeType,
		Description: nf.Description,
		LocationID:  nf.LocationID,
		CreatedAt:   s.Now().UTC(),
	}
	if nf.Parent != "" {
		meta.Parents = []string{nf.Parent}
	}
	s.files[meta.ID] = &memFile{meta: meta, body: append([]byte(nil), nf.Body...)}
	return copyMeta(meta), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	f.body = append([]byte(nil), body...)
	return nil
}

func (s *MemoryStore) Copy(ctx context.Context, id, name string) (models.FileMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.files[id]
	if !ok {
		return models.FileMeta{}, fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	meta := copyMeta(src.meta)
	meta.ID = uuid.New().String()
	meta.Name = name
	meta.CreatedAt = s.Now().UTC()
	s.files[meta.ID] = &memFile{meta: meta, body: append([]byte(nil), src.body...)}
	return copyMeta(meta), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.files, id)
	return nil
}

func (s *MemoryStore) ListByFolder(ctx context.Context, folderID, nameFilter string) ([]models.FileMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.FileMeta{}
	for _, f := range s.files {
		if f.meta.MimeType == models.MimeFolder || !f.meta.InFolder(folderID) {
			continue
		}
		if nameFilter != "" && !strings.Contains(f.meta.Name, nameFilter) {
			continue
		}
		out = append(out, copyMeta(f.meta))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) EnsureFolder(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.files {
		if f.meta.MimeType == models.MimeFolder && f.meta.Name == name {
			return id, nil
		}
	}
	id := uuid.New().String()
	s.files[id] = &memFile{meta: models.FileMeta{
		ID:        id,
		Name:      name,
		MimeType:  models.MimeFolder,
		CreatedAt: s.Now().UTC(),
	}}
	return id, nil
}

func copyMeta(m models.FileMeta) models.FileMeta {
	m.Parents = append([]string(nil), m.Parents...)
	return m
}
