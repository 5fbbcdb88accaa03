package store

import (
	"context"
	"testing"
	"time"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	folder, err := s.EnsureFolder(ctx, "Boards")
	require.NoError(t, err)
	again, err := s.EnsureFolder(ctx, "Boards")
	require.NoError(t, err)
	assert.Equal(t, folder, again)

	meta, err := s.Create(ctx, NewFile{
		Parent:      folder,
		Name:        "Centro" + models.BoardSuffix,
		MimeType:    models.MimeJSON,
		Description: "[FID:loc1]",
		LocationID:  "loc1",
		Body:        []byte(`{"version":1}`),
	})
	require.NoError(t, err)
	assert.True(t, meta.InFolder(folder))

	body, err := s.Get(ctx, meta.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(body))

	require.NoError(t, s.Update(ctx, meta.ID, []byte(`{"version":2}`)))
	body, _ = s.Get(ctx, meta.ID)
	assert.JSONEq(t, `{"version":2}`, string(body))

	cp, err := s.Copy(ctx, meta.ID, "Centro (Copy)"+models.BoardSuffix)
	require.NoError(t, err)
	assert.NotEqual(t, meta.ID, cp.ID)
	assert.Equal(t, "loc1", cp.LocationID)
	assert.Equal(t, meta.Parents, cp.Parents)

	list, err := s.ListByFolder(ctx, folder, models.BoardSuffix)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.Delete(ctx, meta.ID))
	_, err = s.Get(ctx, meta.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, meta.ID, nil), apperr.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, meta.ID), apperr.ErrNotFound)
	_, err = s.GetMeta(ctx, meta.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryStoreListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }

	folder, _ := s.EnsureFolder(ctx, "Boards")
	other, _ := s.EnsureFolder(ctx, "Elsewhere")

	_, _ = s.Create(ctx, NewFile{Parent: folder, Name: "b" + models.BoardSuffix, MimeType: models.MimeJSON})
	now = now.Add(time.Hour)
	_, _ = s.Create(ctx, NewFile{Parent: folder, Name: "a" + models.BoardSuffix, MimeType: models.MimeJSON})
	_, _ = s.Create(ctx, NewFile{Parent: folder, Name: models.ConfigFileName, MimeType: models.MimeJSON})
	_, _ = s.Create(ctx, NewFile{Parent: other, Name: "c" + models.BoardSuffix, MimeType: models.MimeJSON})

	list, err := s.ListByFolder(ctx, folder, models.BoardSuffix)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b"+models.BoardSuffix, list[0].Name)
	assert.Equal(t, "a"+models.BoardSuffix, list[1].Name)

	all, err := s.ListByFolder(ctx, folder, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
