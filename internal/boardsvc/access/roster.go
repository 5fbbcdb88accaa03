package access

import (
	"fmt"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
)

// ValidateRoster checks a whole roster before it is committed. Any violation
// rejects the write as a unit.
func ValidateRoster(cfg *models.GlobalConfig) error {
	locations := make(map[string]bool, len(cfg.Locations))
	for _, l := range cfg.Locations {
		if l.ID == "" {
			return fmt.Errorf("location with empty id: %w", apperr.ErrInvariantViolation)
		}
		if locations[l.ID] {
			return fmt.Errorf("duplicate location id %q: %w", l.ID, apperr.ErrInvariantViolation)
		}
		locations[l.ID] = true
	}

	ids := make(map[string]bool, len(cfg.Users))
	emails := make(map[string]bool, len(cfg.Users))
	directors := map[string]int{}
	for _, u := range cfg.Users {
		if u.Email == "" {
			return fmt.Errorf("user %q without email: %w", u.ID, apperr.ErrInvariantViolation)
		}
		if emails[u.Email] {
			return fmt.Errorf("duplicate email %q: %w", u.Email, apperr.ErrInvariantViolation)
		}
		emails[u.Email] = true
		if u.ID != "" {
			if ids[u.ID] {
				return fmt.Errorf("duplicate user id %q: %w", u.ID, apperr.ErrInvariantViolation)
			}
			ids[u.ID] = true
		}
		if u.IsGlobalAdmin {
			continue // grants are ignored for admins
		}
		for _, g := range u.AccessGrants {
			if !locations[g.LocationID] {
				return fmt.Errorf("user %q has grant on unknown location %q: %w", u.Email, g.LocationID, apperr.ErrInvariantViolation)
			}
			switch g.Role {
			case models.RoleDirector:
				directors[g.LocationID]++
				if directors[g.LocationID] > MaxDirectorsPerLocation {
					return fmt.Errorf("location %q would have more than %d directors: %w",
						g.LocationID, MaxDirectorsPerLocation, apperr.ErrInvariantViolation)
				}
			case models.RoleCoordinator, models.RoleWorker:
			default:
				return fmt.Errorf("user %q has unknown role %q: %w", u.Email, g.Role, apperr.ErrInvariantViolation)
			}
		}
	}
	return nil
}

// NormalizeRoster clears the grants of global admins so the roster keeps the
// admin-xor-grants shape, and drops grants on locations that no longer exist.
func NormalizeRoster(cfg *models.GlobalConfig) {
	cfg.Normalize()
	known := make(map[string]bool, len(cfg.Locations))
	for _, l := range cfg.Locations {
		known[l.ID] = true
	}
	for i := range cfg.Users {
		u := &cfg.Users[i]
		if u.IsGlobalAdmin {
			u.AccessGrants = []models.Grant{}
			continue
		}
		grants := make([]models.Grant, 0, len(u.AccessGrants))
		for _, g := range u.AccessGrants {
			if known[g.LocationID] {
				grants = append(grants, g)
			}
		}
		u.AccessGrants = grants
	}
}

// RemoveLocation returns a copy of cfg without the location and without any
// grant that referenced it.
func RemoveLocation(cfg *models.GlobalConfig, locationID string) (*models.GlobalConfig, error) {
	if _, ok := cfg.Location(locationID); !ok {
		return nil, fmt.Errorf("location %q: %w", locationID, apperr.ErrNotFound)
	}

	out := &models.GlobalConfig{
		Locations:           make([]models.Location, 0, len(cfg.Locations)),
		Users:               make([]models.User, 0, len(cfg.Users)),
		IngredientTemplates: cfg.IngredientTemplates,
		RecipeTemplates:     cfg.RecipeTemplates,
	}
	for _, l := range cfg.Locations {
		if l.ID != locationID {
			out.Locations = append(out.Locations, l)
		}
	}
	for _, u := range cfg.Users {
		grants := make([]models.Grant, 0, len(u.AccessGrants))
		for _, g := range u.AccessGrants {
			if g.LocationID != locationID {
				grants = append(grants, g)
			}
		}
		u.AccessGrants = grants
		out.Users = append(out.Users, u)
	}
	return out, nil
}

// SanitizeFor trims the roster down to what u is allowed to read: admins see
// everything, Directors see their locations and the staff on them, everyone
// else sees their own record and their own locations.
func SanitizeFor(cfg *models.GlobalConfig, u *models.User) *models.GlobalConfig {
	if u.IsGlobalAdmin {
		return cfg
	}

	out := &models.GlobalConfig{
		Locations:           []models.Location{},
		Users:               []models.User{},
		IngredientTemplates: cfg.IngredientTemplates,
		RecipeTemplates:     cfg.RecipeTemplates,
	}

	managed := map[string]bool{}
	for _, id := range DirectorLocations(u) {
		managed[id] = true
	}
	visible := map[string]bool{}
	for _, g := range u.AccessGrants {
		visible[g.LocationID] = true
	}
	for _, l := range cfg.Locations {
		if visible[l.ID] {
			out.Locations = append(out.Locations, l)
		}
	}

	if len(managed) == 0 {
		out.Users = append(out.Users, *u)
		return out
	}
	for _, other := range cfg.Users {
		if other.Email == u.Email {
			out.Users = append(out.Users, other)
			continue
		}
		if other.IsGlobalAdmin {
			continue
		}
		for _, g := range other.AccessGrants {
			if managed[g.LocationID] {
				out.Users = append(out.Users, other)
				break
			}
		}
	}
	return out
}
