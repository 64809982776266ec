package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"RestoPOS/app/models"

	"github.com/google/uuid"
)

// UnlimitedYield is reported for products without a recipe
const UnlimitedYield = math.MaxInt32

// yieldEpsilon absorbs float noise such as 0.3/0.1 = 2.9999999999999996
const yieldEpsilon = 1e-9

// ProductYield is the sellable quantity of one product
type ProductYield struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	MaxYield  int    `json:"maxYield"`
	Unlimited bool   `json:"unlimited"`
}

// deductForOrder subtracts recipe consumption for items, clamping at zero.
// Returns one warning per ingredient left at or under its minimum level.
// Callers guard it with Order.StockDeducted.
func (t *tx) deductForOrder(items []models.OrderItem, reference string) []string {
	var warnings []string
	touched := false

	for _, item := range items {
		p := t.st.productIndex(item.ProductID)
		if p < 0 {
			continue
		}

		for _, line := range t.st.products[p].Recipe {
			i := t.st.ingredientIndex(line.IngredientID)
			if i < 0 {
				continue
			}
			ingredient := &t.st.ingredients[i]

			totalQuantity := line.Quantity * float64(item.Quantity)
			previousStock := ingredient.CurrentStock
			ingredient.CurrentStock = math.Max(0, previousStock-totalQuantity)
			touched = true

			t.st.movements = append(t.st.movements, models.IngredientMovement{
				ID:           uuid.NewString(),
				IngredientID: ingredient.ID,
				Type:         models.MovementSale,
				Quantity:     ingredient.CurrentStock - previousStock,
				PreviousQty:  previousStock,
				NewQty:       ingredient.CurrentStock,
				Reference:    reference,
				CreatedAt:    t.now,
			})

			if ingredient.CurrentStock <= ingredient.MinStockLevel {
				warnings = append(warnings, fmt.Sprintf("low stock: %s (%.2f %s left)",
					ingredient.Name, ingredient.CurrentStock, ingredient.Unit))
			}
		}
	}

	if touched {
		t.touch(KeyIngredients, KeyMovements)
	}
	warnings = dedupe(warnings)
	if len(warnings) > 0 {
		t.emit(Event{Type: EventLowStock, Warnings: append([]string(nil), warnings...)})
	}
	return warnings
}

// restoreForOrder adds back recipe consumption for items. Not capped.
func (t *tx) restoreForOrder(items []models.OrderItem, reference string) {
	touched := false

	for _, item := range items {
		p := t.st.productIndex(item.ProductID)
		if p < 0 {
			continue
		}

		for _, line := range t.st.products[p].Recipe {
			i := t.st.ingredientIndex(line.IngredientID)
			if i < 0 {
				continue
			}
			ingredient := &t.st.ingredients[i]

			totalQuantity := line.Quantity * float64(item.Quantity)
			previousStock := ingredient.CurrentStock
			ingredient.CurrentStock += totalQuantity
			touched = true

			t.st.movements = append(t.st.movements, models.IngredientMovement{
				ID:           uuid.NewString(),
				IngredientID: ingredient.ID,
				Type:         models.MovementRestore,
				Quantity:     totalQuantity,
				PreviousQty:  previousStock,
				NewQty:       ingredient.CurrentStock,
				Reference:    reference,
				CreatedAt:    t.now,
			})
		}
	}

	if touched {
		t.touch(KeyIngredients, KeyMovements)
	}
}

// maxYield computes how many units of a product current stock supports
func (st *state) maxYield(productID string) (int, bool) {
	p := st.productIndex(productID)
	if p < 0 {
		return 0, false
	}
	recipe := st.products[p].Recipe
	if len(recipe) == 0 {
		return UnlimitedYield, true
	}

	yield := UnlimitedYield
	for _, line := range recipe {
		i := st.ingredientIndex(line.IngredientID)
		if i < 0 {
			return 0, true
		}
		if line.Quantity <= 0 {
			continue
		}
		units := math.Floor(st.ingredients[i].CurrentStock/line.Quantity + yieldEpsilon)
		if units < float64(yield) {
			yield = int(units)
		}
	}
	return yield, true
}

func dedupe(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// GetIngredients retrieves all ingredients
func (s *Store) GetIngredients() []models.Ingredient {
	var ingredients []models.Ingredient
	s.view(func(st *state) {
		ingredients = append([]models.Ingredient(nil), st.ingredients...)
	})
	return ingredients
}

// GetIngredient retrieves a single ingredient by ID
func (s *Store) GetIngredient(id string) (*models.Ingredient, error) {
	var ingredient *models.Ingredient
	s.view(func(st *state) {
		if i := st.ingredientIndex(id); i >= 0 {
			c := st.ingredients[i]
			ingredient = &c
		}
	})
	if ingredient == nil {
		return nil, fmt.Errorf("ingredient %s: %w", id, ErrNotFound)
	}
	return ingredient, nil
}

// AddIngredient creates a new ingredient
func (s *Store) AddIngredient(ctx context.Context, ingredient models.Ingredient) (*models.Ingredient, error) {
	if strings.TrimSpace(ingredient.Name) == "" {
		return nil, ErrMissingName
	}
	if ingredient.CurrentStock < 0 {
		return nil, ErrNegativeStock
	}
	if ingredient.ID == "" {
		ingredient.ID = uuid.NewString()
	}

	err := s.mutate(ctx, func(t *tx) error {
		if t.st.ingredientIndex(ingredient.ID) >= 0 {
			return fmt.Errorf("ingredient %s: already exists", ingredient.ID)
		}
		t.st.ingredients = append(t.st.ingredients, ingredient)

		if ingredient.CurrentStock > 0 {
			t.st.movements = append(t.st.movements, models.IngredientMovement{
				ID:           uuid.NewString(),
				IngredientID: ingredient.ID,
				Type:         models.MovementAdjustment,
				Quantity:     ingredient.CurrentStock,
				NewQty:       ingredient.CurrentStock,
				Reference:    "Initial stock",
				CreatedAt:    t.now,
			})
			t.touch(KeyMovements)
		}
		t.touch(KeyIngredients)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// UpdateIngredient replaces an ingredient. A stock change is recorded as a
// manual adjustment.
func (s *Store) UpdateIngredient(ctx context.Context, ingredient models.Ingredient) (Result, error) {
	if strings.TrimSpace(ingredient.Name) == "" {
		return Result{}, ErrMissingName
	}
	if ingredient.CurrentStock < 0 {
		return Result{}, ErrNegativeStock
	}

	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.ingredientIndex(ingredient.ID)
		if i < 0 {
			result = notFound(fmt.Sprintf("ingredient %s not found", ingredient.ID))
			return nil
		}

		current := t.st.ingredients[i]
		if current.CurrentStock != ingredient.CurrentStock {
			t.st.movements = append(t.st.movements, models.IngredientMovement{
				ID:           uuid.NewString(),
				IngredientID: ingredient.ID,
				Type:         models.MovementAdjustment,
				Quantity:     ingredient.CurrentStock - current.CurrentStock,
				PreviousQty:  current.CurrentStock,
				NewQty:       ingredient.CurrentStock,
				Reference:    firstNonEmpty(ingredient.LastLog, "Manual adjustment"),
				CreatedAt:    t.now,
			})
			t.touch(KeyMovements)
		}

		t.st.ingredients[i] = ingredient
		t.touch(KeyIngredients)
		result = applied(nil)
		return nil
	})
	return result, err
}

// DeleteIngredient deletes an ingredient. Recipes referencing it are left as
// they are; yield for those products drops to zero.
func (s *Store) DeleteIngredient(ctx context.Context, id string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.ingredientIndex(id)
		if i < 0 {
			result = notFound(fmt.Sprintf("ingredient %s not found", id))
			return nil
		}
		t.st.ingredients = append(t.st.ingredients[:i], t.st.ingredients[i+1:]...)
		t.touch(KeyIngredients)
		result = applied(nil)
		return nil
	})
	return result, err
}

// AdjustIngredientStock adds delta to an ingredient, clamped at zero, and
// records reason as its last log.
func (s *Store) AdjustIngredientStock(ctx context.Context, id string, delta float64, reason string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.ingredientIndex(id)
		if i < 0 {
			result = notFound(fmt.Sprintf("ingredient %s not found", id))
			return nil
		}
		ingredient := &t.st.ingredients[i]

		previousStock := ingredient.CurrentStock
		ingredient.CurrentStock = math.Max(0, previousStock+delta)
		ingredient.LastLog = reason

		t.st.movements = append(t.st.movements, models.IngredientMovement{
			ID:           uuid.NewString(),
			IngredientID: id,
			Type:         models.MovementAdjustment,
			Quantity:     ingredient.CurrentStock - previousStock,
			PreviousQty:  previousStock,
			NewQty:       ingredient.CurrentStock,
			Reference:    reason,
			CreatedAt:    t.now,
		})
		t.touch(KeyIngredients, KeyMovements)

		var warnings []string
		if previousStock+delta < 0 {
			warnings = append(warnings, fmt.Sprintf("%s clamped at zero", ingredient.Name))
		}
		if delta < 0 && ingredient.CurrentStock <= ingredient.MinStockLevel {
			low := fmt.Sprintf("low stock: %s (%.2f %s left)", ingredient.Name, ingredient.CurrentStock, ingredient.Unit)
			warnings = append(warnings, low)
			t.emit(Event{Type: EventLowStock, Warnings: []string{low}})
		}
		result = applied(warnings)
		return nil
	})
	return result, err
}

// RestoreStockForOrder puts back the recipe consumption of an order. Cancel
// and refund never do this on their own; it is an operator decision.
func (s *Store) RestoreStockForOrder(ctx context.Context, orderID string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.orderIndex(orderID)
		if i < 0 {
			result = notFound(fmt.Sprintf("order %s not found", orderID))
			return nil
		}
		order := t.st.orders[i]
		if !order.StockDeducted {
			result = skipped("stock was never deducted for this order")
			return nil
		}
		t.restoreForOrder(order.Items, fmt.Sprintf("Restore - Order %s", order.OrderNumber))
		result = applied(nil)
		return nil
	})
	return result, err
}

// CalculateMaxYield returns the units of productID current stock supports
func (s *Store) CalculateMaxYield(productID string) (int, error) {
	var (
		yield int
		found bool
	)
	s.view(func(st *state) {
		yield, found = st.maxYield(productID)
	})
	if !found {
		return 0, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return yield, nil
}

// ProductAvailability returns the yield of every product
func (s *Store) ProductAvailability() []ProductYield {
	var yields []ProductYield
	s.view(func(st *state) {
		for _, p := range st.products {
			y, _ := st.maxYield(p.ID)
			yields = append(yields, ProductYield{
				ProductID: p.ID,
				Name:      p.Name,
				MaxYield:  y,
				Unlimited: y == UnlimitedYield,
			})
		}
	})
	return yields
}

// LowStockIngredients gets ingredients at or below their minimum level
func (s *Store) LowStockIngredients() []models.Ingredient {
	var ingredients []models.Ingredient
	s.view(func(st *state) {
		for _, ing := range st.ingredients {
			if ing.CurrentStock <= ing.MinStockLevel {
				ingredients = append(ingredients, ing)
			}
		}
	})
	return ingredients
}

// IngredientMovements retrieves the movements of one ingredient, newest first
func (s *Store) IngredientMovements(ingredientID string) []models.IngredientMovement {
	var movements []models.IngredientMovement
	s.view(func(st *state) {
		for i := len(st.movements) - 1; i >= 0; i-- {
			if st.movements[i].IngredientID == ingredientID {
				movements = append(movements, st.movements[i])
			}
		}
	})
	return movements
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
