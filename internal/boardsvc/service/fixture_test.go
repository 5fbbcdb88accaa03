package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/boardsvc/store"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail  = "admin@ops.test"
	dir1Email   = "dir1@ops.test"
	dir2Email   = "dir2@ops.test"
	coordEmail  = "coord@ops.test"
	workerEmail = "worker@ops.test"
	otherEmail  = "other@ops.test"
	rootFolder  = "Opsboard Boards"
)

type fixture struct {
	store  *store.MemoryStore
	roster *RosterService
	boards *BoardService
	snap   *Snapshot
}

func testRoster() *models.GlobalConfig {
	return &models.GlobalConfig{
		Locations: []models.Location{
			{ID: "loc1", Name: "Downtown", Status: "active"},
			{ID: "loc2", Name: "Harbor", Status: "active"},
		},
		Users: []models.User{
			{ID: "u0", Email: adminEmail, IsGlobalAdmin: true},
			{ID: "u1", Email: dir1Email, AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleDirector}}},
			{ID: "u2", Email: dir2Email, AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleDirector}}},
			{ID: "u3", Email: coordEmail, AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleCoordinator}}},
			{ID: "u4", Email: workerEmail, AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleWorker}}},
			{ID: "u5", Email: otherEmail, AccessGrants: []models.Grant{{LocationID: "loc2", Role: models.RoleDirector}}},
		},
		IngredientTemplates: []models.Ingredient{{ID: "ing-flour", Name: "Flour", Unit: "kg"}},
		RecipeTemplates:     []models.Recipe{{ID: "rec-bread", Name: "Bread"}},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	roster := NewRosterService(st, rootFolder, nil)
	snap, err := roster.Load(ctx)
	require.NoError(t, err)

	body, err := json.Marshal(testRoster())
	require.NoError(t, err)
	require.NoError(t, st.Update(ctx, snap.FileID, body))

	boards := NewBoardService(st, roster, 1_000_000)
	boards.Now = func() time.Time { return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) }

	return &fixture{store: st, roster: roster, boards: boards, snap: snap}
}

// seedBoard writes a board straight to the store, bypassing RBAC.
func (f *fixture) seedBoard(t *testing.T, name, locationID, description string, b *models.Board) models.FileMeta {
	t.Helper()
	body, err := json.Marshal(b)
	require.NoError(t, err)
	meta, err := f.store.Create(context.Background(), store.NewFile{
		Parent:      f.snap.FolderID,
		Name:        name + models.BoardSuffix,
		MimeType:    models.MimeJSON,
		Description: description,
		LocationID:  locationID,
		Body:        body,
	})
	require.NoError(t, err)
	return meta
}

func sampleBoard() *models.Board {
	return &models.Board{
		Version: 5,
		Columns: models.DefaultColumns(),
		Cards: []models.Card{
			{ID: "c1", ColumnID: "col-todo", Title: "Prep dough"},
			{ID: "c2", ColumnID: models.DoneColumnID, Title: "Clean ovens"},
		},
	}
}
