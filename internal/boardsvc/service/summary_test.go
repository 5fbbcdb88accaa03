package service

import (
	"testing"

	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSummarize(t *testing.T) {
	b := &models.Board{
		Columns: models.DefaultColumns(),
		Cards: []models.Card{
			{ID: "a", ColumnID: "col-todo"},
			{ID: "b", ColumnID: "col-todo"},
			{ID: "c", ColumnID: "col-gone"},
		},
		Ingredients: []models.Ingredient{
			{ID: "flour", Name: "Flour", Unit: "kg"},
			{ID: "water", Name: "Water", Unit: "l"},
			{ID: "dough", Name: "Dough", Unit: "kg", Composite: true, Components: []models.Component{
				{IngredientID: "flour", Quantity: d("0.6")},
				{IngredientID: "water", Quantity: d("0.4")},
			}},
		},
		Recipes: []models.Recipe{
			{ID: "bread", Name: "Bread", Ingredients: []models.Component{
				{IngredientID: "dough", Quantity: d("0.5")},
				{IngredientID: "salt", Quantity: d("0.01")},
			}},
		},
		Orders: []models.Order{
			{ID: "o1", Status: models.OrderPending, Items: []models.OrderItem{{RecipeID: "bread", Multiplier: d("4")}}},
			{ID: "o2", Status: models.OrderDelivered, Items: []models.OrderItem{{RecipeID: "bread", Multiplier: d("10")}}},
			{ID: "o3", Status: models.OrderInTransit, Items: []models.OrderItem{{RecipeID: "deleted", Multiplier: d("2")}}},
		},
	}
	b.Hydrate()

	s := Summarize(b)
	assert.Equal(t, 3, s.Cards)
	assert.Equal(t, 3, s.TotalOrders)
	assert.Equal(t, 1, s.PendingOrders)
	assert.Equal(t, 1, s.DeliveredOrders)
	assert.True(t, d("33").Equal(s.CompletionRate), s.CompletionRate.String())

	require.Len(t, s.Columns, 6)
	assert.Equal(t, 2, s.Columns[1].Count)
	assert.True(t, s.Columns[5].Missing)
	assert.Equal(t, "col-gone", s.Columns[5].ColumnID)

	require.Len(t, s.TopRecipes, 2)
	assert.Equal(t, "Bread", s.TopRecipes[0].Name)
	assert.True(t, d("14").Equal(s.TopRecipes[0].Units))
	assert.Equal(t, MissingRecipe, s.TopRecipes[1].Name)
	assert.True(t, s.TopRecipes[1].Missing)

	req := map[string]IngredientQuantity{}
	for _, r := range s.Requirements {
		req[r.IngredientID] = r
	}
	require.Len(t, req, 3)
	assert.True(t, d("1.2").Equal(req["flour"].Quantity), req["flour"].Quantity.String())
	assert.True(t, d("0.8").Equal(req["water"].Quantity))
	assert.True(t, req["salt"].Missing)
	assert.True(t, d("0.04").Equal(req["salt"].Quantity))
}

func TestSummarizeEmptyBoard(t *testing.T) {
	b := &models.Board{}
	b.Hydrate()
	s := Summarize(b)
	assert.Zero(t, s.TotalOrders)
	assert.True(t, s.CompletionRate.IsZero())
	assert.Empty(t, s.TopRecipes)
}

func TestSummarizeCyclicComposite(t *testing.T) {
	b := &models.Board{
		Ingredients: []models.Ingredient{
			{ID: "a", Composite: true, Components: []models.Component{{IngredientID: "b", Quantity: d("1")}}},
			{ID: "b", Composite: true, Components: []models.Component{{IngredientID: "a", Quantity: d("1")}}},
		},
		Recipes: []models.Recipe{{ID: "r", Ingredients: []models.Component{{IngredientID: "a", Quantity: d("1")}}}},
		Orders:  []models.Order{{ID: "o", Status: models.OrderPending, Items: []models.OrderItem{{RecipeID: "r", Multiplier: d("1")}}}},
	}
	b.Hydrate()
	s := Summarize(b)
	require.Len(t, s.Requirements, 1)
}
