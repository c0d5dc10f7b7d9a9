package models

import "time"

// Provider is the slice of a service provider profile the booking core needs.
type Provider struct {
	ID               string    `bson:"id" json:"id"`
	Name             string    `bson:"name" json:"name"`
	CategoryIDs      []string  `bson:"categoryIds" json:"categoryIds"`
	Available        bool      `bson:"available" json:"available"`
	CurrentBookingID string    `bson:"currentBookingId,omitempty" json:"currentBookingId,omitempty"`
	RatingSum        int64     `bson:"ratingSum" json:"ratingSum"`
	RatingCount      int64     `bson:"ratingCount" json:"ratingCount"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AverageRating returns 0 for unrated providers.
func (p *Provider) AverageRating() float64 {
	if p.RatingCount == 0 {
		return 0
	}
	return float64(p.RatingSum) / float64(p.RatingCount)
}
