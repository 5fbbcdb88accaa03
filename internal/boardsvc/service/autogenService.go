package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/access"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	log "github.com/sirupsen/logrus"
)

// MonthlyName is the name of the board generated for a location in the month of t.
func MonthlyName(locationName string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("Operations - %s - [%s %d]", locationName, t.Month(), t.Year())
}

// AutoGenerate is the admin triggered run. An empty list means every location.
func (s *BoardService) AutoGenerate(ctx context.Context, email string, locations []models.Location) (int, error) {
	_, u, err := s.roster.Me(ctx, email)
	if err != nil {
		return 0, err
	}
	if !u.IsGlobalAdmin {
		return 0, fmt.Errorf("auto-generate as %s: %w", email, apperr.ErrUnauthorized)
	}
	return s.Generate(ctx, locations)
}

// Generate creates this month's board for each location that has none yet. The
// newest existing board is carried over without its finished cards; a location
// without boards gets a fresh one.
func (s *BoardService) Generate(ctx context.Context, locations []models.Location) (int, error) {
	snap, err := s.roster.Load(ctx)
	if err != nil {
		return 0, err
	}
	if len(locations) == 0 {
		locations = snap.Config.Locations
	}

	files, err := s.store.ListByFolder(ctx, snap.FolderID, models.BoardSuffix)
	if err != nil {
		return 0, err
	}

	now := s.Now().UTC()
	created := 0
	for _, loc := range locations {
		if loc.ID == "" {
			continue
		}
		if loc.Name == "" {
			if known, ok := snap.Config.Location(loc.ID); ok {
				loc.Name = known.Name
			}
		}

		var latest *models.FileMeta
		thisMonth := false
		for i := range files {
			f := files[i]
			if access.LocationTag(f) != loc.ID {
				continue
			}
			c := f.CreatedAt.UTC()
			if c.Year() == now.Year() && c.Month() == now.Month() {
				thisMonth = true
				break
			}
			if latest == nil || c.After(latest.CreatedAt) {
				latest = &files[i]
			}
		}
		if thisMonth {
			continue
		}

		var b *models.Board
		if latest != nil {
			prev, err := s.read(ctx, latest.ID)
			if err != nil {
				log.Errorf("auto-generate: read base board %s for %s: %v", latest.ID, loc.ID, err)
			} else {
				b = carryOver(prev)
			}
		}
		if b == nil {
			b = freshBoard(snap.Config)
		}

		desc := access.FormatLegacyTag(loc.ID) + " Auto-generated board."
		if _, err := s.create(ctx, snap.FolderID, MonthlyName(loc.Name, now), desc, loc.ID, b); err != nil {
			return created, fmt.Errorf("auto-generate %s: %w", loc.ID, err)
		}
		created++
	}

	if created > 0 {
		log.Infof("auto-generate: %d boards created", created)
	}
	return created, nil
}

// AddLocation registers a location and seeds its first board.
func (s *BoardService) AddLocation(ctx context.Context, email string, loc models.Location) (*models.Location, error) {
	added, err := s.roster.AddLocation(ctx, email, loc)
	if err != nil {
		return nil, err
	}
	if _, err := s.Generate(ctx, []models.Location{*added}); err != nil {
		log.Errorf("seed board for location %s: %v", added.ID, err)
	}
	return added, nil
}

func carryOver(prev *models.Board) *models.Board {
	done := prev.DoneColumn()
	cards := make([]models.Card, 0, len(prev.Cards))
	for _, c := range prev.Cards {
		if c.ColumnID != done {
			cards = append(cards, c)
		}
	}
	prev.Cards = cards
	return prev
}
