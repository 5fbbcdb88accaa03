package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/access"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/boardsvc/store"
	log "github.com/sirupsen/logrus"
)

type Permission int

const (
	PermView Permission = iota
	PermEdit
)

func (p Permission) String() string {
	if p == PermEdit {
		return "edit"
	}
	return "view"
}

type BoardService struct {
	store           store.DocumentStore
	roster          *RosterService
	maxPayloadBytes int
	Now             func() time.Time

	writeMu sync.Mutex // version compare and store write happen together
}

func NewBoardService(st store.DocumentStore, roster *RosterService, maxPayloadBytes int) *BoardService {
	return &BoardService{
		store:           st,
		roster:          roster,
		maxPayloadBytes: maxPayloadBytes,
		Now:             time.Now,
	}
}

func (s *BoardService) Roster() *RosterService {
	return s.roster
}

// authorize loads the roster and the board metadata fresh, rejects files
// outside the root folder, then applies the RBAC predicate to the board's tag.
func (s *BoardService) authorize(ctx context.Context, email, boardID string, p Permission) (*Snapshot, models.FileMeta, error) {
	snap, u, err := s.roster.Me(ctx, email)
	if err != nil {
		return nil, models.FileMeta{}, err
	}
	if boardID == "" {
		return nil, models.FileMeta{}, fmt.Errorf("board id required: %w", apperr.ErrBadRequest)
	}

	meta, err := s.store.GetMeta(ctx, boardID)
	if err != nil {
		return nil, models.FileMeta{}, err
	}
	if !meta.InFolder(snap.FolderID) || meta.Name == models.ConfigFileName {
		return nil, models.FileMeta{}, fmt.Errorf("board %s outside root folder: %w", boardID, apperr.ErrUnauthorized)
	}

	loc := access.LocationTag(meta)
	allowed := access.CanView(u, loc)
	if p == PermEdit {
		allowed = access.CanEdit(u, loc)
	}
	if !allowed {
		return nil, models.FileMeta{}, fmt.Errorf("%s %s on board %s: %w", email, p, boardID, apperr.ErrUnauthorized)
	}
	return snap, meta, nil
}

// AuthorizeView and AuthorizeEdit are the checks the realtime service runs on
// join and on every update.
func (s *BoardService) AuthorizeView(ctx context.Context, email, boardID string) error {
	_, _, err := s.authorize(ctx, email, boardID, PermView)
	return err
}

func (s *BoardService) AuthorizeEdit(ctx context.Context, email, boardID string) error {
	_, _, err := s.authorize(ctx, email, boardID, PermEdit)
	return err
}

// Get is the cold read clients do on load.
func (s *BoardService) Get(ctx context.Context, email, boardID string) (*models.Board, error) {
	if _, _, err := s.authorize(ctx, email, boardID, PermView); err != nil {
		return nil, err
	}
	return s.read(ctx, boardID)
}

func (s *BoardService) read(ctx context.Context, boardID string) (*models.Board, error) {
	body, err := s.store.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	b := &models.Board{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, b); err != nil {
			log.Warnf("board %s has unreadable content, serving empty board: %v", boardID, err)
			b = &models.Board{}
		}
	}
	b.Hydrate()
	return b, nil
}

// List returns the boards of the root folder the caller may view.
func (s *BoardService) List(ctx context.Context, email string) ([]models.FileMeta, error) {
	snap, u, err := s.roster.Me(ctx, email)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListByFolder(ctx, snap.FolderID, models.BoardSuffix)
	if err != nil {
		return nil, err
	}
	out := []models.FileMeta{}
	for _, f := range files {
		if f.Name == models.ConfigFileName {
			continue
		}
		if access.CanView(u, access.LocationTag(f)) {
			out = append(out, f)
		}
	}
	return out, nil
}

type CreateRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	LocationID  string        `json:"locationId"`
	Data        *models.Board `json:"data"`
}

func (s *BoardService) Create(ctx context.Context, email string, req CreateRequest) (models.FileMeta, error) {
	snap, u, err := s.roster.Me(ctx, email)
	if err != nil {
		return models.FileMeta{}, err
	}

	loc := req.LocationID
	if loc == "" {
		loc = access.ParseLegacyTag(req.Description)
	}
	if loc == "" {
		return models.FileMeta{}, fmt.Errorf("board needs a location: %w", apperr.ErrBadRequest)
	}
	if !access.CanEdit(u, loc) {
		return models.FileMeta{}, fmt.Errorf("%s create on location %s: %w", email, loc, apperr.ErrUnauthorized)
	}

	name := strings.TrimSpace(strings.TrimSuffix(req.Name, ".json"))
	if name == "" {
		return models.FileMeta{}, fmt.Errorf("board name required: %w", apperr.ErrBadRequest)
	}

	b := req.Data
	if b == nil {
		b = freshBoard(snap.Config)
	} else {
		seedTemplates(b, snap.Config)
	}
	b.Hydrate()

	return s.create(ctx, snap.FolderID, name, req.Description, loc, b)
}

func (s *BoardService) create(ctx context.Context, folderID, name, description, loc string, b *models.Board) (models.FileMeta, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return models.FileMeta{}, err
	}
	if description == "" {
		description = access.FormatLegacyTag(loc)
	}
	meta, err := s.store.Create(ctx, store.NewFile{
		Parent:      folderID,
		Name:        name + models.BoardSuffix,
		MimeType:    models.MimeJSON,
		Description: description,
		LocationID:  loc,
		Body:        body,
	})
	if err != nil {
		return models.FileMeta{}, err
	}
	log.Infof("board %s (%s) created for location %s", meta.ID, meta.Name, loc)
	return meta, nil
}

// Update is the durable whole-document write clients send after every local
// mutation. It only moves the stored version forward: an edit the realtime
// engine rejected carries a version that is already taken and is dropped.
func (s *BoardService) Update(ctx context.Context, email, boardID string, data json.RawMessage) error {
	if _, _, err := s.authorize(ctx, email, boardID, PermEdit); err != nil {
		return err
	}
	return s.write(ctx, boardID, data, false)
}

// Persist writes a version the realtime engine already accepted. The caller
// has authorized the editor; the board must still live in the root folder.
// The accepted copy replaces a client write of the same version.
func (s *BoardService) Persist(ctx context.Context, boardID string, data json.RawMessage) error {
	snap, err := s.roster.Load(ctx)
	if err != nil {
		return err
	}
	meta, err := s.store.GetMeta(ctx, boardID)
	if err != nil {
		return err
	}
	if !meta.InFolder(snap.FolderID) || meta.Name == models.ConfigFileName {
		return fmt.Errorf("persist board %s outside root folder: %w", boardID, apperr.ErrUnauthorized)
	}
	return s.write(ctx, boardID, data, true)
}

func (s *BoardService) write(ctx context.Context, boardID string, data json.RawMessage, accepted bool) error {
	if len(data) > s.maxPayloadBytes {
		return fmt.Errorf("board %s is %d bytes: %w", boardID, len(data), apperr.ErrPayloadTooLarge)
	}
	var b models.Board
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("decode board %s: %w", boardID, apperr.ErrBadRequest)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.read(ctx, boardID)
	if err != nil {
		return err
	}
	// versions may arrive out of order when several writers consume the queue
	if current.Version > b.Version || (current.Version == b.Version && !accepted) {
		log.Warnf("write board %s: stored v%d, incoming v%d skipped", boardID, current.Version, b.Version)
		return nil
	}
	return s.store.Update(ctx, boardID, data)
}

func (s *BoardService) Copy(ctx context.Context, email, boardID, name string) (models.FileMeta, error) {
	_, meta, err := s.authorize(ctx, email, boardID, PermEdit)
	if err != nil {
		return models.FileMeta{}, err
	}
	if name == "" {
		name = strings.TrimSuffix(meta.Name, models.BoardSuffix)
	}
	return s.store.Copy(ctx, boardID, name+" (Copy)"+models.BoardSuffix)
}

func (s *BoardService) Delete(ctx context.Context, email, boardID string) error {
	if _, _, err := s.authorize(ctx, email, boardID, PermEdit); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, boardID); err != nil {
		return err
	}
	log.Infof("board %s deleted by %s", boardID, email)
	return nil
}

// Summary computes the dashboard figures of a board.
func (s *BoardService) Summary(ctx context.Context, email, boardID string) (*Summary, error) {
	b, err := s.Get(ctx, email, boardID)
	if err != nil {
		return nil, err
	}
	return Summarize(b), nil
}

func freshBoard(cfg *models.GlobalConfig) *models.Board {
	b := &models.Board{
		Version: 1,
		Columns: models.DefaultColumns(),
	}
	seedTemplates(b, cfg)
	return b
}

func seedTemplates(b *models.Board, cfg *models.GlobalConfig) {
	if len(b.Ingredients) == 0 {
		b.Ingredients = append([]models.Ingredient{}, cfg.IngredientTemplates...)
	}
	if len(b.Recipes) == 0 {
		b.Recipes = append([]models.Recipe{}, cfg.RecipeTemplates...)
	}
}
