package promo

import "github.com/google/uuid"

// Matches evaluates the condition set against the cart snapshot. A nil or
// empty condition set is universally eligible; every present field must hold.
func (c *Conditions) Matches(cart Cart) bool {
	if c == nil {
		return true
	}
	if c.MinQuantity != nil && cart.TotalItems < *c.MinQuantity {
		return false
	}
	if c.MaxQuantity != nil && cart.TotalItems > *c.MaxQuantity {
		return false
	}
	if c.MinCartValue != nil && cart.Subtotal.LessThan(*c.MinCartValue) {
		return false
	}
	if c.MaxCartValue != nil && cart.Subtotal.GreaterThan(*c.MaxCartValue) {
		return false
	}
	if len(c.Categories) > 0 && !anyLineInCategories(cart.Lines, c.Categories) {
		return false
	}
	if len(c.Products) > 0 && !productsSatisfied(cart.Lines, c.Products, c.Attributes.MustContainAll) {
		return false
	}
	if c.Attributes.SameSize && !uniformBy(cart.Lines, func(l CartLine) string { return l.Size }) {
		return false
	}
	if c.Attributes.SameColor && !uniformBy(cart.Lines, func(l CartLine) string { return l.Color }) {
		return false
	}
	if c.Attributes.SameProduct && !uniformBy(cart.Lines, func(l CartLine) string { return l.ProductID.String() }) {
		return false
	}
	return true
}

func anyLineInCategories(lines []CartLine, categories []string) bool {
	for _, line := range lines {
		for _, cat := range categories {
			if line.Category == cat {
				return true
			}
		}
	}
	return false
}

func productsSatisfied(lines []CartLine, products []uuid.UUID, mustContainAll bool) bool {
	inCart := make(map[uuid.UUID]bool, len(lines))
	for _, line := range lines {
		inCart[line.ProductID] = true
	}
	if mustContainAll {
		for _, id := range products {
			if !inCart[id] {
				return false
			}
		}
		return true
	}
	for _, id := range products {
		if inCart[id] {
			return true
		}
	}
	return false
}

// uniformBy reports whether all lines share a single distinct key. An empty
// cart is trivially uniform.
func uniformBy(lines []CartLine, key func(CartLine) string) bool {
	seen := ""
	found := false
	for _, line := range lines {
		k := key(line)
		if !found {
			seen = k
			found = true
			continue
		}
		if k != seen {
			return false
		}
	}
	return true
}
