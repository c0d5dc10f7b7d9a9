package models

import "time"

// Category is read-only reference data for the booking core.
// Prices are in minor currency units.
type Category struct {
	ID               string    `bson:"id" json:"id"`
	Name             string    `bson:"name" json:"name"`
	MinPrice         int64     `bson:"minPrice" json:"minPrice"`
	MaxPrice         int64     `bson:"maxPrice" json:"maxPrice"`
	RecommendedPrice int64     `bson:"recommendedPrice" json:"recommendedPrice"`
	IsOther          bool      `bson:"isOther" json:"isOther"`
	Active           bool      `bson:"active" json:"active"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AcceptsFinalAmount checks a completion amount against the price bounds.
// Free-form "other" categories only require a positive amount.
func (c *Category) AcceptsFinalAmount(amount int64) bool {
	if c.IsOther {
		return amount > 0
	}
	return amount >= c.MinPrice && amount <= c.MaxPrice
}
