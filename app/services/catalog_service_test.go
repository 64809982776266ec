package services

import (
	"testing"

	"RestoPOS/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_CategoriesAndProducts(t *testing.T) {
	f := newFixture(t)

	drinks, err := f.store.SaveCategory(f.ctx, models.Category{Name: "Drinks", Kind: "BEVERAGE", DisplayOrder: 2})
	require.NoError(t, err)
	_, err = f.store.SaveCategory(f.ctx, models.Category{Name: "Mains", Kind: "FOOD", DisplayOrder: 1})
	require.NoError(t, err)

	categories := f.store.GetCategories()
	require.Len(t, categories, 2)
	assert.Equal(t, "Mains", categories[0].Name)

	_, err = f.store.SaveProduct(f.ctx, models.Product{Name: "Thai tea", CategoryID: drinks.ID, Recipe: []models.RecipeItem{{Quantity: 1}}})
	require.Error(t, err)

	tea, err := f.store.SaveProduct(f.ctx, models.Product{Name: "Thai tea", CategoryID: drinks.ID, Price: 45})
	require.NoError(t, err)
	require.Len(t, f.store.GetProductsByCategory(drinks.ID), 1)

	tea.Price = 50
	_, err = f.store.SaveProduct(f.ctx, *tea)
	require.NoError(t, err)
	got, err := f.store.GetProduct(tea.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Price)
	assert.Len(t, f.store.GetProducts(), 1)

	result, err := f.store.DeleteCategory(f.ctx, drinks.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	got, err = f.store.GetProduct(tea.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)

	result, err = f.store.DeleteProduct(f.ctx, tea.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	_, err = f.store.GetProduct(tea.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_OptionGroups(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.SaveOptionGroup(f.ctx, models.OptionGroup{Name: "Sweetness", MinSelect: 3, MaxSelect: 1})
	require.Error(t, err)

	group, err := f.store.SaveOptionGroup(f.ctx, models.OptionGroup{
		Name:      "Sweetness",
		Required:  true,
		MinSelect: 1,
		MaxSelect: 1,
		Choices:   []models.OptionChoice{{Name: "Less"}, {Name: "Extra", PriceModifier: 5}},
	})
	require.NoError(t, err)
	for _, c := range group.Choices {
		assert.NotEmpty(t, c.ID)
	}

	other := "other-group"
	_, err = f.store.SaveProduct(f.ctx, models.Product{ID: "tea", Name: "Tea", OptionGroupIDs: []string{group.ID, other}})
	require.NoError(t, err)

	result, err := f.store.DeleteOptionGroup(f.ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Empty(t, f.store.GetOptionGroups())

	tea, err := f.store.GetProduct("tea")
	require.NoError(t, err)
	assert.Equal(t, []string{other}, tea.OptionGroupIDs)
}

func TestCatalog_Discounts(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.SaveDiscount(f.ctx, models.Discount{Name: "Too much", Type: models.DiscountPercent, Value: 120})
	require.Error(t, err)
	_, err = f.store.SaveDiscount(f.ctx, models.Discount{Name: "Negative", Type: models.DiscountFixed, Value: -5})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.store.SaveDiscount(f.ctx, models.Discount{Name: "Odd", Type: "BOGO"})
	require.Error(t, err)

	happy, err := f.store.SaveDiscount(f.ctx, models.Discount{Name: "Happy hour", Type: models.DiscountPercent, Value: 20, Active: true, AppliesTo: "BEVERAGE"})
	require.NoError(t, err)
	_, err = f.store.SaveDiscount(f.ctx, models.Discount{Name: "Staff", Type: models.DiscountFixed, Value: 30})
	require.NoError(t, err)

	assert.Len(t, f.store.GetDiscounts(false), 2)
	active := f.store.GetDiscounts(true)
	require.Len(t, active, 1)
	assert.Equal(t, happy.ID, active[0].ID)

	result, err := f.store.DeleteDiscount(f.ctx, happy.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	result, err = f.store.DeleteDiscount(f.ctx, happy.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestCatalog_Settings(t *testing.T) {
	f := newFixture(t)
	require.Error(t, f.store.UpdateSettings(f.ctx, models.Settings{TaxRate: 101}))

	settings := models.Settings{BusinessName: "Baan Khao", Currency: "THB", TaxRate: 7}
	require.NoError(t, f.store.UpdateSettings(f.ctx, settings))
	assert.Equal(t, settings, f.store.GetSettings())
}
