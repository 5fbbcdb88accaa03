package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/boardsvc/service"
	"github.com/avvvet/opsboard-services/internal/boardsvc/store"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv       *httptest.Server
	tokenAuth *jwtauth.JWTAuth
	store     *store.MemoryStore
	folderID  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	roster := service.NewRosterService(st, "Opsboard Boards", []string{"admin@ops.test"})
	snap, err := roster.Load(ctx)
	require.NoError(t, err)

	cfg := &models.GlobalConfig{
		Locations: []models.Location{{ID: "loc1", Name: "Downtown"}},
		Users: []models.User{
			{ID: "u1", Email: "dir@ops.test", AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleDirector}}},
			{ID: "u2", Email: "worker@ops.test", AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleWorker}}},
		},
	}
	body, _ := json.Marshal(cfg)
	require.NoError(t, st.Update(ctx, snap.FileID, body))

	tokenAuth := NewTokenAuth("test-secret")
	h := NewHandler(tokenAuth, service.NewBoardService(st, roster, 1_000_000))
	r := chi.NewRouter()
	h.SetRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, tokenAuth: tokenAuth, store: st, folderID: snap.FolderID}
}

func (e *testEnv) do(t *testing.T, method, path, email string, body interface{}) (int, Response) {
	t.Helper()
	var rd bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&rd).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &rd)
	require.NoError(t, err)
	if email != "" {
		_, tok, err := e.tokenAuth.Encode(map[string]interface{}{"email": email})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var rsp Response
	_ = json.NewDecoder(res.Body).Decode(&rsp)
	return res.StatusCode, rsp
}

func TestHealthIsPublic(t *testing.T) {
	e := newTestEnv(t)
	code, rsp := e.do(t, http.MethodGet, "/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, rsp.Message, "board service is running")
}

func TestMissingTokenIsRejected(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.do(t, http.MethodGet, "/v1/boards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUnknownUserForbidden(t *testing.T) {
	e := newTestEnv(t)
	code, rsp := e.do(t, http.MethodGet, "/v1/roster", "nobody@ops.test", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.NotEmpty(t, rsp.Error)
}

func TestBoardFlow(t *testing.T) {
	e := newTestEnv(t)

	code, rsp := e.do(t, http.MethodPost, "/v1/board", "dir@ops.test", BoardAction{
		Action: "create", Name: "Week 1", LocationID: "loc1",
	})
	require.Equal(t, http.StatusOK, code, rsp.Error)
	created := rsp.Data.(map[string]interface{})
	id := created["id"].(string)

	code, rsp = e.do(t, http.MethodGet, "/v1/board?id="+id, "worker@ops.test", nil)
	require.Equal(t, http.StatusOK, code, rsp.Error)
	board := rsp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, board["version"])

	next := models.Board{Version: 2, Columns: models.DefaultColumns()}
	raw, _ := json.Marshal(next)

	code, _ = e.do(t, http.MethodPost, "/v1/board", "worker@ops.test", BoardAction{Action: "update", ID: id, Data: raw})
	assert.Equal(t, http.StatusForbidden, code)

	code, rsp = e.do(t, http.MethodPost, "/v1/board", "dir@ops.test", BoardAction{Action: "update", ID: id, Data: raw})
	require.Equal(t, http.StatusOK, code, rsp.Error)

	code, rsp = e.do(t, http.MethodGet, "/v1/board/summary?id="+id, "worker@ops.test", nil)
	require.Equal(t, http.StatusOK, code, rsp.Error)

	code, rsp = e.do(t, http.MethodPost, "/v1/board", "dir@ops.test", BoardAction{Action: "copy", ID: id})
	require.Equal(t, http.StatusOK, code, rsp.Error)
	assert.Equal(t, "Week 1 (Copy).opsboard", rsp.Data.(map[string]interface{})["name"])

	code, rsp = e.do(t, http.MethodGet, "/v1/boards", "worker@ops.test", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, rsp.Data, 2)

	code, _ = e.do(t, http.MethodPost, "/v1/board", "dir@ops.test", BoardAction{Action: "delete", ID: id})
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodGet, "/v1/board?id="+id, "dir@ops.test", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(t, http.MethodPost, "/v1/board", "dir@ops.test", BoardAction{Action: "rename"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRosterWrites(t *testing.T) {
	e := newTestEnv(t)

	code, rsp := e.do(t, http.MethodPost, "/v1/roster/locations", "admin@ops.test", models.Location{Name: "Harbor"})
	require.Equal(t, http.StatusOK, code, rsp.Error)
	locID := rsp.Data.(map[string]interface{})["id"].(string)

	code, _ = e.do(t, http.MethodPost, "/v1/roster", "dir@ops.test", models.GlobalConfig{})
	assert.Equal(t, http.StatusForbidden, code)

	bad := models.GlobalConfig{
		Locations: []models.Location{{ID: "loc1"}},
		Users: []models.User{
			{Email: "a@ops.test", AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleDirector}}},
			{Email: "b@ops.test", AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleDirector}}},
			{Email: "c@ops.test", AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleDirector}}},
		},
	}
	code, _ = e.do(t, http.MethodPost, "/v1/roster", "admin@ops.test", bad)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodDelete, "/v1/roster/locations/"+locID, "admin@ops.test", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodDelete, "/v1/roster/locations/"+locID, "admin@ops.test", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, rsp = e.do(t, http.MethodGet, "/v1/roster", "worker@ops.test", nil)
	require.Equal(t, http.StatusOK, code)
	users := rsp.Data.(map[string]interface{})["users"].([]interface{})
	assert.Len(t, users, 1)
}
