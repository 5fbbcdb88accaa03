package models

type Role string

const (
	RoleDirector    Role = "Director"
	RoleCoordinator Role = "Coordinator"
	RoleWorker      Role = "Worker"
)

// Grant is a (location, role) pair held by a user.
type Grant struct {
	LocationID string `json:"locationId"`
	Role       Role   `json:"role"`
}

// User is matched against the identity claim by exact, case-sensitive email.
type User struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	IsGlobalAdmin bool    `json:"isGlobalAdmin"`
	AccessGrants  []Grant `json:"accessGrants"`
}

type Location struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Status  string `json:"status"`
}

// GlobalConfig is the single root document: roster plus template catalogs that
// seed new boards.
type GlobalConfig struct {
	Locations           []Location   `json:"locations"`
	Users               []User       `json:"users"`
	IngredientTemplates []Ingredient `json:"ingredientTemplates"`
	RecipeTemplates     []Recipe     `json:"recipeTemplates"`
}

func (c *GlobalConfig) Normalize() {
	if c.Locations == nil {
		c.Locations = []Location{}
	}
	if c.Users == nil {
		c.Users = []User{}
	}
	if c.IngredientTemplates == nil {
		c.IngredientTemplates = []Ingredient{}
	}
	if c.RecipeTemplates == nil {
		c.RecipeTemplates = []Recipe{}
	}
	for i := range c.Users {
		if c.Users[i].AccessGrants == nil {
			c.Users[i].AccessGrants = []Grant{}
		}
	}
}

func (c *GlobalConfig) Location(id string) (*Location, bool) {
	for i := range c.Locations {
		if c.Locations[i].ID == id {
			return &c.Locations[i], true
		}
	}
	return nil, false
}
