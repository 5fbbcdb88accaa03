package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Board is the whole operations document of one location. Version is the only
// conflict detection token: every accepted mutation bumps it by exactly one.
type Board struct {
	Version     int          `json:"version"`
	Columns     []Column     `json:"columns"`
	Cards       []Card       `json:"cards"`
	Recipes     []Recipe     `json:"recipes"`
	Orders      []Order      `json:"orders"`
	Ingredients []Ingredient `json:"ingredients"`
	Links       []Link       `json:"links"`
}

type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"` // display sort only
}

type Card struct {
	ID          string      `json:"id"`
	ColumnID    string      `json:"columnId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Labels      []string    `json:"labels"`
	Assignees   []string    `json:"assignees"`
	Checklists  []Checklist `json:"checklists"`
	CreatedBy   string      `json:"createdBy,omitempty"`
	EditedBy    string      `json:"editedBy,omitempty"`
	EditedAt    string      `json:"editedAt,omitempty"`
}

type Checklist struct {
	Title string          `json:"title"`
	Items []ChecklistItem `json:"items"`
}

type ChecklistItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Ingredient may be composite, built from other ingredients of the same board.
type Ingredient struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Unit       string      `json:"unit"`
	Composite  bool        `json:"composite"`
	Components []Component `json:"components,omitempty"`
	CreatedBy  string      `json:"createdBy,omitempty"`
}

type Component struct {
	IngredientID string          `json:"ingredientId"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type Recipe struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Ingredients []Component `json:"ingredients"`
	Steps       []string    `json:"steps"`
	Notes       string      `json:"notes"`
	CreatedBy   string      `json:"createdBy,omitempty"`
	EditedBy    string      `json:"editedBy,omitempty"`
	EditedAt    string      `json:"editedAt,omitempty"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderPreparing OrderStatus = "Preparing"
	OrderInTransit OrderStatus = "InTransit"
	OrderDelivered OrderStatus = "Delivered"
)

type Order struct {
	ID        string      `json:"id"`
	Customer  string      `json:"customer"`
	Date      string      `json:"date"`
	Status    OrderStatus `json:"status"`
	Kind      string      `json:"kind,omitempty"` // store or takeaway
	Address   string      `json:"address,omitempty"`
	Items     []OrderItem `json:"items"`
	CreatedBy string      `json:"createdBy,omitempty"`
	EditedBy  string      `json:"editedBy,omitempty"`
	EditedAt  string      `json:"editedAt,omitempty"`
}

type OrderItem struct {
	RecipeID   string          `json:"recipeId"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

type Link struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	CreatedBy string `json:"createdBy,omitempty"`
}

const DoneColumnID = "col-done"

// DefaultColumns is the column set of a freshly generated board.
func DefaultColumns() []Column {
	return []Column{
		{ID: "col-backlog", Title: "Backlog", Order: 0},
		{ID: "col-todo", Title: "To Do", Order: 1},
		{ID: "col-inprogress", Title: "In Progress", Order: 2},
		{ID: "col-review", Title: "Review", Order: 3},
		{ID: DoneColumnID, Title: "Done", Order: 4},
	}
}

// Hydrate fills the gaps of documents written by older clients so every list is
// non-nil and a board always has somewhere to put cards.
func (b *Board) Hydrate() {
	if len(b.Columns) == 0 {
		b.Columns = []Column{
			{ID: "col-backlog", Title: "Backlog", Order: 0},
			{ID: "col-todo", Title: "To Do", Order: 1},
		}
	}
	if b.Cards == nil {
		b.Cards = []Card{}
	}
	if b.Recipes == nil {
		b.Recipes = []Recipe{}
	}
	if b.Orders == nil {
		b.Orders = []Order{}
	}
	if b.Ingredients == nil {
		b.Ingredients = []Ingredient{}
	}
	if b.Links == nil {
		b.Links = []Link{}
	}
	if b.Version < 1 {
		b.Version = 1
	}
}

func (b *Board) HasColumn(id string) bool {
	for _, c := range b.Columns {
		if c.ID == id {
			return true
		}
	}
	return false
}

// DoneColumn returns the id of the column holding finished cards.
func (b *Board) DoneColumn() string {
	for _, c := range b.Columns {
		t := strings.ToLower(c.Title)
		if strings.Contains(t, "done") || strings.Contains(t, "completado") {
			return c.ID
		}
	}
	return DoneColumnID
}

func (b *Board) Recipe(id string) (*Recipe, bool) {
	for i := range b.Recipes {
		if b.Recipes[i].ID == id {
			return &b.Recipes[i], true
		}
	}
	return nil, false
}

func (b *Board) Ingredient(id string) (*Ingredient, bool) {
	for i := range b.Ingredients {
		if b.Ingredients[i].ID == id {
			return &b.Ingredients[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy.
func (b *Board) Clone() (*Board, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	out := &Board{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
