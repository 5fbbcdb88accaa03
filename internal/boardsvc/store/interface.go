// Package store is the document store adapter: whole JSON blobs keyed by opaque
// file ids, plus a metadata record per file (parents, description, location tag).
package store

import (
	"context"

	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
)

// DocumentStore is implemented by the Mongo, Postgres and in-memory backends.
// Missing files yield apperr.ErrNotFound; transport failures yield
// apperr.ErrStoreUnavailable.
type DocumentStore interface {
	Get(ctx context.Context, id string) ([]byte, error)
	GetMeta(ctx context.Context, id string) (models.FileMeta, error)
	Create(ctx context.Context, f NewFile) (models.FileMeta, error)
	Update(ctx context.Context, id string, body []byte) error
	Copy(ctx context.Context, id, name string) (models.FileMeta, error)
	Delete(ctx context.Context, id string) error
	// ListByFolder returns the non-folder files under folderID whose name
	// contains nameFilter (empty matches all), oldest first.
	ListByFolder(ctx context.Context, folderID, nameFilter string) ([]models.FileMeta, error)
	// EnsureFolder finds a root folder by name, creating it when missing.
	EnsureFolder(ctx context.Context, name string) (string, error)
}

type NewFile struct {
	Parent      string
	Name        string
	MimeType    string
	Description string
	LocationID  string
	Body        []byte
}
