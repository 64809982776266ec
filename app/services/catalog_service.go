package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"RestoPOS/app/models"

	"github.com/google/uuid"
)

// Catalog management. Products, categories, option groups and discounts are
// plain entity records; only recipes feed back into the stock ledger.

// GetProducts retrieves all products
func (s *Store) GetProducts() []models.Product {
	var products []models.Product
	s.view(func(st *state) {
		products = make([]models.Product, len(st.products))
		for i, p := range st.products {
			products[i] = p.Clone()
		}
	})
	return products
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(id string) (*models.Product, error) {
	var product *models.Product
	s.view(func(st *state) {
		if i := st.productIndex(id); i >= 0 {
			c := st.products[i].Clone()
			product = &c
		}
	})
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return product, nil
}

// GetProductsByCategory retrieves the products of a category
func (s *Store) GetProductsByCategory(categoryID string) []models.Product {
	var products []models.Product
	s.view(func(st *state) {
		for _, p := range st.products {
			if p.CategoryID == categoryID {
				products = append(products, p.Clone())
			}
		}
	})
	return products
}

// SaveProduct creates or replaces a product
func (s *Store) SaveProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, ErrMissingName
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	for _, line := range product.Recipe {
		if line.IngredientID == "" {
			return nil, fmt.Errorf("recipe of %s: ingredient id is required", product.Name)
		}
	}
	product = product.Clone()

	err := s.mutate(ctx, func(t *tx) error {
		if i := t.st.productIndex(product.ID); i >= 0 {
			t.st.products[i] = product
		} else {
			t.st.products = append(t.st.products, product)
		}
		t.touch(KeyProducts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	saved := product.Clone()
	return &saved, nil
}

// DeleteProduct deletes a product. Orders keep their product snapshot.
func (s *Store) DeleteProduct(ctx context.Context, id string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.productIndex(id)
		if i < 0 {
			result = notFound(fmt.Sprintf("product %s not found", id))
			return nil
		}
		t.st.products = append(t.st.products[:i], t.st.products[i+1:]...)
		t.touch(KeyProducts)
		result = applied(nil)
		return nil
	})
	return result, err
}

// GetCategories retrieves all categories ordered by display order
func (s *Store) GetCategories() []models.Category {
	var categories []models.Category
	s.view(func(st *state) {
		categories = append([]models.Category(nil), st.categories...)
	})
	sortCategories(categories)
	return categories
}

// SaveCategory creates or replaces a category
func (s *Store) SaveCategory(ctx context.Context, category models.Category) (*models.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, ErrMissingName
	}
	if category.ID == "" {
		category.ID = uuid.NewString()
	}

	err := s.mutate(ctx, func(t *tx) error {
		for i := range t.st.categories {
			if t.st.categories[i].ID == category.ID {
				t.st.categories[i] = category
				t.touch(KeyCategories)
				return nil
			}
		}
		t.st.categories = append(t.st.categories, category)
		t.touch(KeyCategories)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory deletes a category. Products in it become uncategorized.
func (s *Store) DeleteCategory(ctx context.Context, id string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		for i := range t.st.categories {
			if t.st.categories[i].ID != id {
				continue
			}
			t.st.categories = append(t.st.categories[:i], t.st.categories[i+1:]...)
			t.touch(KeyCategories)

			for p := range t.st.products {
				if t.st.products[p].CategoryID == id {
					t.st.products[p].CategoryID = ""
					t.touch(KeyProducts)
				}
			}
			result = applied(nil)
			return nil
		}
		result = notFound(fmt.Sprintf("category %s not found", id))
		return nil
	})
	return result, err
}

// GetOptionGroups retrieves all option groups
func (s *Store) GetOptionGroups() []models.OptionGroup {
	var groups []models.OptionGroup
	s.view(func(st *state) {
		for _, g := range st.optionGroups {
			g.Choices = append([]models.OptionChoice(nil), g.Choices...)
			groups = append(groups, g)
		}
	})
	return groups
}

// SaveOptionGroup creates or replaces an option group
func (s *Store) SaveOptionGroup(ctx context.Context, group models.OptionGroup) (*models.OptionGroup, error) {
	if strings.TrimSpace(group.Name) == "" {
		return nil, ErrMissingName
	}
	if group.MaxSelect > 0 && group.MinSelect > group.MaxSelect {
		return nil, fmt.Errorf("option group %s: min select exceeds max select", group.Name)
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.Choices = append([]models.OptionChoice(nil), group.Choices...)
	for i := range group.Choices {
		if group.Choices[i].ID == "" {
			group.Choices[i].ID = uuid.NewString()
		}
	}

	err := s.mutate(ctx, func(t *tx) error {
		for i := range t.st.optionGroups {
			if t.st.optionGroups[i].ID == group.ID {
				t.st.optionGroups[i] = group
				t.touch(KeyOptionGroups)
				return nil
			}
		}
		t.st.optionGroups = append(t.st.optionGroups, group)
		t.touch(KeyOptionGroups)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// DeleteOptionGroup deletes an option group and unlinks it from products
func (s *Store) DeleteOptionGroup(ctx context.Context, id string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		for i := range t.st.optionGroups {
			if t.st.optionGroups[i].ID != id {
				continue
			}
			t.st.optionGroups = append(t.st.optionGroups[:i], t.st.optionGroups[i+1:]...)
			t.touch(KeyOptionGroups)

			for p := range t.st.products {
				ids := t.st.products[p].OptionGroupIDs
				for k := range ids {
					if ids[k] == id {
						t.st.products[p].OptionGroupIDs = append(ids[:k:k], ids[k+1:]...)
						t.touch(KeyProducts)
						break
					}
				}
			}
			result = applied(nil)
			return nil
		}
		result = notFound(fmt.Sprintf("option group %s not found", id))
		return nil
	})
	return result, err
}

// GetDiscounts retrieves all discounts. Active only when activeOnly is set.
func (s *Store) GetDiscounts(activeOnly bool) []models.Discount {
	var discounts []models.Discount
	s.view(func(st *state) {
		for _, d := range st.discounts {
			if activeOnly && !d.Active {
				continue
			}
			d.CategoryIDs = append([]string(nil), d.CategoryIDs...)
			discounts = append(discounts, d)
		}
	})
	return discounts
}

// SaveDiscount creates or replaces a discount
func (s *Store) SaveDiscount(ctx context.Context, discount models.Discount) (*models.Discount, error) {
	if strings.TrimSpace(discount.Name) == "" {
		return nil, ErrMissingName
	}
	switch discount.Type {
	case models.DiscountPercent:
		if discount.Value < 0 || discount.Value > 100 {
			return nil, fmt.Errorf("discount %s: percent must be between 0 and 100", discount.Name)
		}
	case models.DiscountFixed:
		if discount.Value < 0 {
			return nil, ErrInvalidAmount
		}
	default:
		return nil, fmt.Errorf("discount %s: unknown type %q", discount.Name, discount.Type)
	}
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	discount.CategoryIDs = append([]string(nil), discount.CategoryIDs...)

	err := s.mutate(ctx, func(t *tx) error {
		for i := range t.st.discounts {
			if t.st.discounts[i].ID == discount.ID {
				t.st.discounts[i] = discount
				t.touch(KeyDiscounts)
				return nil
			}
		}
		t.st.discounts = append(t.st.discounts, discount)
		t.touch(KeyDiscounts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// DeleteDiscount deletes a discount
func (s *Store) DeleteDiscount(ctx context.Context, id string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		for i := range t.st.discounts {
			if t.st.discounts[i].ID == id {
				t.st.discounts = append(t.st.discounts[:i], t.st.discounts[i+1:]...)
				t.touch(KeyDiscounts)
				result = applied(nil)
				return nil
			}
		}
		result = notFound(fmt.Sprintf("discount %s not found", id))
		return nil
	})
	return result, err
}

// GetSettings returns the pricing settings
func (s *Store) GetSettings() models.Settings {
	var settings models.Settings
	s.view(func(st *state) { settings = st.settings })
	return settings
}

// UpdateSettings replaces the pricing settings. Totals of existing orders are
// not recomputed.
func (s *Store) UpdateSettings(ctx context.Context, settings models.Settings) error {
	if settings.TaxRate < 0 || settings.TaxRate > 100 {
		return fmt.Errorf("tax rate %.2f: must be between 0 and 100", settings.TaxRate)
	}
	return s.mutate(ctx, func(t *tx) error {
		t.st.settings = settings
		t.touch(KeySettings)
		return nil
	})
}

func sortCategories(categories []models.Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].DisplayOrder < categories[j].DisplayOrder
	})
}
