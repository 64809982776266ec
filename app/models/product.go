package models

import (
	"encoding/json"
)

// PlatformPrice is the price and cost of a product on a delivery platform
type PlatformPrice struct {
	Price float64 `json:"price"`
	Cost  float64 `json:"cost,omitempty"`
}

// Product represents a product in the menu
type Product struct {
	ID             string                   `json:"id"`
	Name           string                   `json:"name"`
	CategoryID     string                   `json:"categoryId"`
	Price          float64                  `json:"price"`
	Cost           float64                  `json:"cost"`
	DeliveryPrices map[string]PlatformPrice `json:"deliveryPrices,omitempty"` // keyed by platform
	Recipe         []RecipeItem             `json:"recipe,omitempty"`
	OptionGroupIDs []string                 `json:"optionGroupIds,omitempty"`
	TrackStock     bool                     `json:"trackStock,omitempty"`
	Stock          int                      `json:"stock,omitempty"`    // direct-stock mode, not touched by recipes
	Variants       json.RawMessage          `json:"variants,omitempty"` // opaque catalog data
}

// Clone returns a deep copy of the product
func (p Product) Clone() Product {
	c := p
	if p.Recipe != nil {
		c.Recipe = append([]RecipeItem(nil), p.Recipe...)
	}
	if p.OptionGroupIDs != nil {
		c.OptionGroupIDs = append([]string(nil), p.OptionGroupIDs...)
	}
	if p.DeliveryPrices != nil {
		c.DeliveryPrices = make(map[string]PlatformPrice, len(p.DeliveryPrices))
		for k, v := range p.DeliveryPrices {
			c.DeliveryPrices[k] = v
		}
	}
	if p.Variants != nil {
		c.Variants = append(json.RawMessage(nil), p.Variants...)
	}
	return c
}

// Category represents a product category
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind,omitempty"` // FOOD, BEVERAGE
	DisplayOrder int    `json:"displayOrder"`
}

// OptionChoice is one selectable entry of an option group
type OptionChoice struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PriceModifier float64 `json:"priceModifier"`
}

// OptionGroup represents a group of product options
type OptionGroup struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Required  bool           `json:"required"`
	MinSelect int            `json:"minSelect"`
	MaxSelect int            `json:"maxSelect"`
	Choices   []OptionChoice `json:"choices"`
}

// DiscountType is how a discount value is interpreted
type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

// Discount is read by the pricing layer; the order core only stores the
// resulting amount.
type Discount struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        DiscountType `json:"type"`
	Value       float64      `json:"value"`
	Active      bool         `json:"active"`
	AppliesTo   string       `json:"appliesTo"` // ALL, FOOD, BEVERAGE, CATEGORIES
	CategoryIDs []string     `json:"categoryIds,omitempty"`
}

// Settings holds the business wide pricing settings
type Settings struct {
	BusinessName       string  `json:"businessName"`
	Currency           string  `json:"currency"`
	TaxRate            float64 `json:"taxRate"` // percent
	TaxIncludedInPrice bool    `json:"taxIncludedInPrice"`
}
