// Package access holds the RBAC predicates. Every function takes the roster
// explicitly and has no side effects; persisting roster changes is up to the caller.
package access

import (
	"fmt"
	"regexp"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
)

const MaxDirectorsPerLocation = 2

var legacyTag = regexp.MustCompile(`\[FID:([^\]]+)\]`)

// ResolveUser finds the roster entry for an identity. Unknown emails fail closed.
func ResolveUser(cfg *models.GlobalConfig, email string) (*models.User, error) {
	if cfg == nil || email == "" {
		return nil, fmt.Errorf("resolve %q: %w", email, apperr.ErrUnauthorized)
	}
	for i := range cfg.Users {
		if cfg.Users[i].Email == email {
			return &cfg.Users[i], nil
		}
	}
	return nil, fmt.Errorf("resolve %q: %w", email, apperr.ErrUnauthorized)
}

// CanView reports whether u may read boards of a location. An empty locationID
// is an unassigned board and only global admins see it.
func CanView(u *models.User, locationID string) bool {
	if u == nil {
		return false
	}
	if u.IsGlobalAdmin {
		return true
	}
	if locationID == "" {
		return false
	}
	for _, g := range u.AccessGrants {
		if g.LocationID == locationID {
			return true
		}
	}
	return false
}

// CanEdit is CanView restricted to Director and Coordinator grants.
func CanEdit(u *models.User, locationID string) bool {
	if u == nil {
		return false
	}
	if u.IsGlobalAdmin {
		return true
	}
	if locationID == "" {
		return false
	}
	for _, g := range u.AccessGrants {
		if g.LocationID == locationID && (g.Role == models.RoleDirector || g.Role == models.RoleCoordinator) {
			return true
		}
	}
	return false
}

// CanAdminister is true for global admins and for Directors of at least one
// location; a Director's administration stays scoped to DirectorLocations.
func CanAdminister(u *models.User) bool {
	if u == nil {
		return false
	}
	return u.IsGlobalAdmin || len(DirectorLocations(u)) > 0
}

func DirectorLocations(u *models.User) []string {
	var out []string
	for _, g := range u.AccessGrants {
		if g.Role == models.RoleDirector {
			out = append(out, g.LocationID)
		}
	}
	return out
}

// LocationTag returns the location a board belongs to: the typed field first,
// then the legacy [FID:<id>] token in the description. Empty means unassigned.
func LocationTag(meta models.FileMeta) string {
	if meta.LocationID != "" {
		return meta.LocationID
	}
	return ParseLegacyTag(meta.Description)
}

func ParseLegacyTag(description string) string {
	m := legacyTag.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[1]
}

func FormatLegacyTag(locationID string) string {
	return "[FID:" + locationID + "]"
}
