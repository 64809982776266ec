package models

import (
	"time"
)

// Ingredient represents a raw material/ingredient used in products
type Ingredient struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`         // pcs, kg, g, l, ml
	CurrentStock  float64 `json:"currentStock"` // Allows decimals for kg, liters
	MinStockLevel float64 `json:"minStockLevel"`
	CostPerUnit   float64 `json:"costPerUnit"`
	LastLog       string  `json:"lastLog,omitempty"` // reason of the last manual adjustment
}

// RecipeItem is how much of one ingredient a single unit of a product consumes
type RecipeItem struct {
	IngredientID string  `json:"ingredientId"`
	Quantity     float64 `json:"quantity"`
}

// MovementType classifies a stock change
type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementRestore    MovementType = "restore"
	MovementAdjustment MovementType = "adjustment"
)

// IngredientMovement tracks all ingredient stock changes
type IngredientMovement struct {
	ID           string       `json:"id"`
	IngredientID string       `json:"ingredientId"`
	Type         MovementType `json:"type"`
	Quantity     float64      `json:"quantity"` // Positive for additions, negative for deductions
	PreviousQty  float64      `json:"previousQty"`
	NewQty       float64      `json:"newQty"`
	Reference    string       `json:"reference"` // Order number, reason, etc.
	CreatedAt    time.Time    `json:"createdAt"`
}
