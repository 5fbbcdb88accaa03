package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/access"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/boardsvc/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RosterService owns the GlobalConfig document. Every call reads it fresh from
// the store so permission checks never run against a stale roster.
type RosterService struct {
	store       store.DocumentStore
	rootFolder  string
	superAdmins []string
}

func NewRosterService(st store.DocumentStore, rootFolder string, superAdmins []string) *RosterService {
	return &RosterService{store: st, rootFolder: rootFolder, superAdmins: superAdmins}
}

// Snapshot is a loaded roster together with where it lives.
type Snapshot struct {
	Config   *models.GlobalConfig
	FileID   string
	FolderID string
}

// Load finds or creates the config document in the root folder and applies the
// super admin promotion.
func (s *RosterService) Load(ctx context.Context) (*Snapshot, error) {
	folderID, err := s.store.EnsureFolder(ctx, s.rootFolder)
	if err != nil {
		return nil, fmt.Errorf("root folder: %w", err)
	}

	files, err := s.store.ListByFolder(ctx, folderID, models.ConfigFileName)
	if err != nil {
		return nil, fmt.Errorf("find config: %w", err)
	}

	var fileID string
	for _, f := range files {
		if f.Name == models.ConfigFileName {
			fileID = f.ID
			break
		}
	}

	cfg := &models.GlobalConfig{}
	if fileID == "" {
		cfg.Normalize()
		body, err := json.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		meta, err := s.store.Create(ctx, store.NewFile{
			Parent:   folderID,
			Name:     models.ConfigFileName,
			MimeType: models.MimeJSON,
			Body:     body,
		})
		if err != nil {
			return nil, fmt.Errorf("create config: %w", err)
		}
		fileID = meta.ID
		log.Infof("created roster document %s in folder %s", fileID, folderID)
	} else {
		body, err := s.store.Get(ctx, fileID)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, cfg); err != nil {
				return nil, fmt.Errorf("decode config: %w", apperr.ErrInvariantViolation)
			}
		}
		cfg.Normalize()
	}

	s.promote(cfg)
	return &Snapshot{Config: cfg, FileID: fileID, FolderID: folderID}, nil
}

func (s *RosterService) promote(cfg *models.GlobalConfig) {
	for _, email := range s.superAdmins {
		found := false
		for i := range cfg.Users {
			if cfg.Users[i].Email == email {
				cfg.Users[i].IsGlobalAdmin = true
				cfg.Users[i].AccessGrants = []models.Grant{}
				found = true
				break
			}
		}
		if !found {
			cfg.Users = append(cfg.Users, models.User{
				ID:            uuid.New().String(),
				Email:         email,
				IsGlobalAdmin: true,
				AccessGrants:  []models.Grant{},
			})
		}
	}
}

// Me resolves the caller against a fresh roster.
func (s *RosterService) Me(ctx context.Context, email string) (*Snapshot, *models.User, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	u, err := access.ResolveUser(snap.Config, email)
	if err != nil {
		return nil, nil, err
	}
	return snap, u, nil
}

// Get returns the roster as the caller is allowed to see it.
func (s *RosterService) Get(ctx context.Context, email string) (*models.GlobalConfig, error) {
	snap, u, err := s.Me(ctx, email)
	if err != nil {
		return nil, err
	}
	return access.SanitizeFor(snap.Config, u), nil
}

// Replace validates and writes a whole roster. Nothing is written when any
// check fails.
func (s *RosterService) Replace(ctx context.Context, email string, cfg *models.GlobalConfig) error {
	snap, u, err := s.Me(ctx, email)
	if err != nil {
		return err
	}
	if !u.IsGlobalAdmin {
		return fmt.Errorf("replace roster as %s: %w", email, apperr.ErrUnauthorized)
	}
	if cfg == nil {
		return fmt.Errorf("empty roster: %w", apperr.ErrBadRequest)
	}
	return s.commit(ctx, snap.FileID, cfg)
}

// AddLocation appends a new active location and returns it.
func (s *RosterService) AddLocation(ctx context.Context, email string, loc models.Location) (*models.Location, error) {
	snap, u, err := s.Me(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.IsGlobalAdmin {
		return nil, fmt.Errorf("add location as %s: %w", email, apperr.ErrUnauthorized)
	}
	if loc.Name == "" {
		return nil, fmt.Errorf("location name required: %w", apperr.ErrBadRequest)
	}
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	loc.Status = "active"

	cfg := *snap.Config
	cfg.Locations = append(append([]models.Location{}, snap.Config.Locations...), loc)
	if err := s.commit(ctx, snap.FileID, &cfg); err != nil {
		return nil, err
	}
	return &loc, nil
}

// DeleteLocation removes a location and every grant on it in one write.
func (s *RosterService) DeleteLocation(ctx context.Context, email, locationID string) error {
	snap, u, err := s.Me(ctx, email)
	if err != nil {
		return err
	}
	if !u.IsGlobalAdmin {
		return fmt.Errorf("delete location as %s: %w", email, apperr.ErrUnauthorized)
	}
	next, err := access.RemoveLocation(snap.Config, locationID)
	if err != nil {
		return err
	}
	return s.commit(ctx, snap.FileID, next)
}

func (s *RosterService) commit(ctx context.Context, fileID string, cfg *models.GlobalConfig) error {
	access.NormalizeRoster(cfg)
	if err := access.ValidateRoster(cfg); err != nil {
		return err
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, fileID, body); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	log.Infof("roster written: %d locations, %d users", len(cfg.Locations), len(cfg.Users))
	return nil
}
