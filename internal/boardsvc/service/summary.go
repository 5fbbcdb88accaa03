package service

import (
	"sort"

	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/shopspring/decimal"
)

const (
	MissingRecipe     = "missing recipe"
	MissingIngredient = "missing ingredient"
	topRecipes        = 3
	maxExpandDepth    = 8
)

type Summary struct {
	Cards           int                  `json:"cards"`
	Columns         []ColumnCount        `json:"columns"`
	TotalOrders     int                  `json:"totalOrders"`
	PendingOrders   int                  `json:"pendingOrders"`
	DeliveredOrders int                  `json:"deliveredOrders"`
	CompletionRate  decimal.Decimal      `json:"completionRate"` // percent of orders delivered
	TopRecipes      []RecipeCount        `json:"topRecipes"`
	Requirements    []IngredientQuantity `json:"requirements"`
}

type ColumnCount struct {
	ColumnID string `json:"columnId"`
	Title    string `json:"title"`
	Count    int    `json:"count"`
	Missing  bool   `json:"missing,omitempty"`
}

type RecipeCount struct {
	RecipeID string          `json:"recipeId"`
	Name     string          `json:"name"`
	Units    decimal.Decimal `json:"units"`
	Missing  bool            `json:"missing,omitempty"`
}

type IngredientQuantity struct {
	IngredientID string          `json:"ingredientId"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	Missing      bool            `json:"missing,omitempty"`
}

// Summarize never fails: references to deleted recipes, ingredients or columns
// are reported with Missing set.
func Summarize(b *models.Board) *Summary {
	sum := &Summary{
		Cards:          len(b.Cards),
		Columns:        []ColumnCount{},
		TopRecipes:     []RecipeCount{},
		Requirements:   []IngredientQuantity{},
		CompletionRate: decimal.Zero,
	}

	perColumn := map[string]int{}
	for _, c := range b.Cards {
		perColumn[c.ColumnID]++
	}
	cols := append([]models.Column{}, b.Columns...)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
	for _, c := range cols {
		sum.Columns = append(sum.Columns, ColumnCount{ColumnID: c.ID, Title: c.Title, Count: perColumn[c.ID]})
		delete(perColumn, c.ID)
	}
	orphans := make([]string, 0, len(perColumn))
	for id := range perColumn {
		orphans = append(orphans, id)
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		sum.Columns = append(sum.Columns, ColumnCount{ColumnID: id, Count: perColumn[id], Missing: true})
	}

	units := map[string]decimal.Decimal{}
	need := map[string]decimal.Decimal{}
	for _, o := range b.Orders {
		sum.TotalOrders++
		switch o.Status {
		case models.OrderPending:
			sum.PendingOrders++
		case models.OrderDelivered:
			sum.DeliveredOrders++
		}
		for _, it := range o.Items {
			units[it.RecipeID] = units[it.RecipeID].Add(it.Multiplier)
			if o.Status == models.OrderDelivered {
				continue
			}
			r, ok := b.Recipe(it.RecipeID)
			if !ok {
				continue
			}
			for _, comp := range r.Ingredients {
				expand(b, comp.IngredientID, comp.Quantity.Mul(it.Multiplier), need, 0)
			}
		}
	}

	if sum.TotalOrders > 0 {
		sum.CompletionRate = decimal.NewFromInt(int64(sum.DeliveredOrders)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(sum.TotalOrders))).
			Round(0)
	}

	for id, q := range units {
		rc := RecipeCount{RecipeID: id, Units: q}
		if r, ok := b.Recipe(id); ok {
			rc.Name = r.Name
		} else {
			rc.Name = MissingRecipe
			rc.Missing = true
		}
		sum.TopRecipes = append(sum.TopRecipes, rc)
	}
	sort.Slice(sum.TopRecipes, func(i, j int) bool {
		if c := sum.TopRecipes[i].Units.Cmp(sum.TopRecipes[j].Units); c != 0 {
			return c > 0
		}
		return sum.TopRecipes[i].RecipeID < sum.TopRecipes[j].RecipeID
	})
	if len(sum.TopRecipes) > topRecipes {
		sum.TopRecipes = sum.TopRecipes[:topRecipes]
	}

	for id, q := range need {
		iq := IngredientQuantity{IngredientID: id, Quantity: q}
		if ing, ok := b.Ingredient(id); ok {
			iq.Name, iq.Unit = ing.Name, ing.Unit
		} else {
			iq.Name = MissingIngredient
			iq.Missing = true
		}
		sum.Requirements = append(sum.Requirements, iq)
	}
	sort.Slice(sum.Requirements, func(i, j int) bool {
		return sum.Requirements[i].IngredientID < sum.Requirements[j].IngredientID
	})
	return sum
}

// expand adds q of an ingredient to need, breaking composites down to their
// base ingredients. Cycles stop at maxExpandDepth and count as the ingredient itself.
func expand(b *models.Board, id string, q decimal.Decimal, need map[string]decimal.Decimal, depth int) {
	ing, ok := b.Ingredient(id)
	if !ok || !ing.Composite || len(ing.Components) == 0 || depth >= maxExpandDepth {
		need[id] = need[id].Add(q)
		return
	}
	for _, c := range ing.Components {
		expand(b, c.IngredientID, c.Quantity.Mul(q), need, depth+1)
	}
}
