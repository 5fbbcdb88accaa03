package boardclient_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/opsboard-services/internal/boardclient"
	boardhandlers "github.com/avvvet/opsboard-services/internal/boardsvc/handlers"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/boardsvc/service"
	"github.com/avvvet/opsboard-services/internal/boardsvc/store"
	"github.com/avvvet/opsboard-services/internal/socketsvc/handlers"
	"github.com/avvvet/opsboard-services/internal/socketsvc/routes"
	"github.com/avvvet/opsboard-services/internal/socketsvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxPayload = 1_000_000

type stack struct {
	api       *httptest.Server
	socket    *httptest.Server
	tokenAuth *jwtauth.JWTAuth
	store     *store.MemoryStore
	boardID   string
}

// newStack runs the board service and the realtime service over one store.
func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	roster := service.NewRosterService(st, "Opsboard Boards", nil)
	snap, err := roster.Load(ctx)
	require.NoError(t, err)

	cfg := models.GlobalConfig{
		Locations: []models.Location{{ID: "loc1", Name: "Downtown"}},
		Users: []models.User{
			{ID: "u1", Email: "ana@ops.test", AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleCoordinator}}},
			{ID: "u2", Email: "ben@ops.test", AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleDirector}}},
			{ID: "u3", Email: "wes@ops.test", AccessGrants: []models.Grant{{LocationID: "loc1", Role: models.RoleWorker}}},
		},
	}
	body, _ := json.Marshal(cfg)
	require.NoError(t, st.Update(ctx, snap.FileID, body))

	boardBody, _ := json.Marshal(models.Board{
		Version: 5,
		Columns: models.DefaultColumns(),
		Cards:   []models.Card{{ID: "c1", ColumnID: "col-todo", Title: "Prep"}},
	})
	meta, err := st.Create(ctx, store.NewFile{
		Parent: snap.FolderID, Name: "Downtown.opsboard", MimeType: models.MimeJSON,
		LocationID: "loc1", Body: boardBody,
	})
	require.NoError(t, err)

	boards := service.NewBoardService(st, roster, maxPayload)
	tokenAuth := boardhandlers.NewTokenAuth("test-secret")

	apiRouter := chi.NewRouter()
	boardhandlers.NewHandler(tokenAuth, boards).SetRoutes(apiRouter)
	api := httptest.NewServer(apiRouter)
	t.Cleanup(api.Close)

	sockRouter := chi.NewRouter()
	routes.SetRoutes(sockRouter, handlers.NewHandler(ws.NewWs(boards, nil, maxPayload, 16), nil, maxPayload), tokenAuth)
	sock := httptest.NewServer(sockRouter)
	t.Cleanup(sock.Close)

	return &stack{api: api, socket: sock, tokenAuth: tokenAuth, store: st, boardID: meta.ID}
}

func (s *stack) token(t *testing.T, email string) string {
	t.Helper()
	_, tok, err := s.tokenAuth.Encode(map[string]interface{}{"email": email})
	require.NoError(t, err)
	return tok
}

func (s *stack) storedVersion() int {
	body, err := s.store.Get(context.Background(), s.boardID)
	if err != nil {
		return -1
	}
	var b models.Board
	if err := json.Unmarshal(body, &b); err != nil {
		return -1
	}
	return b.Version
}

// open loads the board over HTTP, then joins it over the socket.
func (s *stack) open(t *testing.T, ctx context.Context, email string) *boardclient.State {
	t.Helper()
	tok := s.token(t, email)
	api := boardclient.NewAPI(s.api.URL, tok)

	b, err := api.FetchBoard(ctx, s.boardID)
	require.NoError(t, err)

	conn, err := boardclient.Dial(ctx, "ws"+strings.TrimPrefix(s.socket.URL, "http")+"/v1/ws", tok)
	require.NoError(t, err)

	state := boardclient.New(s.boardID, conn, api)
	state.Load(b)
	go conn.Run(ctx, state)
	require.NoError(t, conn.Join(s.boardID, email))
	return state
}

func TestFetchBoard(t *testing.T) {
	s := newStack(t)
	api := boardclient.NewAPI(s.api.URL, s.token(t, "ben@ops.test"))

	b, err := api.FetchBoard(context.Background(), s.boardID)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Version)
	assert.Len(t, b.Cards, 1)

	_, err = boardclient.NewAPI(s.api.URL, s.token(t, "nobody@ops.test")).FetchBoard(context.Background(), s.boardID)
	assert.Error(t, err)
}

func TestSaveBoardWritesInBackground(t *testing.T) {
	s := newStack(t)
	api := boardclient.NewAPI(s.api.URL, s.token(t, "ben@ops.test"))

	require.NoError(t, api.SaveBoard(s.boardID, &models.Board{Version: 6, Columns: models.DefaultColumns()}))
	assert.Eventually(t, func() bool { return s.storedVersion() == 6 }, 2*time.Second, 20*time.Millisecond)
}

func TestTwoClientsConverge(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ana := s.open(t, ctx, "ana@ops.test")
	require.Eventually(t, func() bool { return ana.Online() == 1 }, 2*time.Second, 10*time.Millisecond)
	ben := s.open(t, ctx, "ben@ops.test")
	require.Eventually(t, func() bool { return ana.Online() == 2 && ben.Online() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ana.MoveCard("c1", models.DoneColumnID))
	assert.Equal(t, 6, ana.Version())

	assert.Eventually(t, func() bool {
		b := ben.Board()
		return b.Version == 6 && b.Cards[0].ColumnID == models.DoneColumnID
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return s.storedVersion() == 6 }, 2*time.Second, 20*time.Millisecond)

	// ben edits from the version he was sent
	_, err := ben.AddCard("col-todo", "Restock", "ben@ops.test")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return ana.Version() == 7 && len(ana.Board().Cards) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerEditIsRejected(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ana := s.open(t, ctx, "ana@ops.test")
	wes := s.open(t, ctx, "wes@ops.test")
	require.Eventually(t, func() bool { return ana.Online() == 2 }, 2*time.Second, 10*time.Millisecond)

	// the optimistic render happens, the server refuses it
	require.NoError(t, wes.MoveCard("c1", models.DoneColumnID))
	assert.Eventually(t, func() bool {
		e := wes.LastError()
		return e != nil && e.Code == "unauthorized"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, ana.Version())
}
