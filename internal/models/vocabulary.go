package models

import "strings"

// Category is a spending or earning bucket with the keywords used to match it.
type Category struct {
	Name      string    `yaml:"name"`
	Direction Direction `yaml:"direction"`
	Keywords  []string  `yaml:"keywords"`
	Color     string    `yaml:"color,omitempty"`
	Icon      string    `yaml:"icon,omitempty"`

	// Placeholder marks a category synthesized in memory because the store had none.
	Placeholder bool `yaml:"-"`
}

// PlaceholderCategory builds the in-memory default for d.
func PlaceholderCategory(d Direction) Category {
	return Category{
		Name:        d.DefaultCategoryName(),
		Direction:   d,
		Placeholder: true,
	}
}

// Account is a known financial account identified by sender names or number fragments.
type Account struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Active   bool     `yaml:"active"`
}

// ExtractionRule is a user-authored regex fast path for a known message format.
//
// AmountGroup and MerchantGroup name a capture group either by index ("1") or by name ("amount").
type ExtractionRule struct {
	Name          string    `yaml:"name"`
	Pattern       string    `yaml:"pattern"`
	AmountGroup   string    `yaml:"amount_group"`
	MerchantGroup string    `yaml:"merchant_group,omitempty"`
	Category      string    `yaml:"category"`
	Account       string    `yaml:"account,omitempty"`
	Direction     Direction `yaml:"direction,omitempty"`
	Active        bool      `yaml:"active"`
}

// FindCategory returns the category named name (case-insensitive) for direction d.
// An empty d matches either direction.
func FindCategory(categories []Category, name string, d Direction) (Category, bool) {
	for _, c := range categories {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		if d == "" || c.Direction == d {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryDirection returns the direction of the categories named name. It reports false
// when no category has that name or when the name is used for both directions.
func CategoryDirection(categories []Category, name string) (Direction, bool) {
	var found Direction
	for _, c := range categories {
		if !strings.EqualFold(c.Name, name) || !c.Direction.Valid() {
			continue
		}
		if found != "" && found != c.Direction {
			return "", false
		}
		found = c.Direction
	}
	return found, found != ""
}
