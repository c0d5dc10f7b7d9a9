package providerRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Claim flips available to false only if the provider is free, or is
// already held by the same booking.
func (r *MongoProviderRepo) Claim(ctx context.Context, providerID, bookingID string) (bool, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	filter := bson.M{
		"id": providerID,
		"$or": bson.A{
			bson.M{"available": true},
			bson.M{"currentBookingId": bookingID},
		},
	}
	update := bson.M{"$set": bson.M{
		"available":        false,
		"currentBookingId": bookingID,
		"updatedAt":        time.Now().UTC(),
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to claim provider %s: %w", providerID, err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoProviderRepo) Release(ctx context.Context, providerID, bookingID string) error {
	ctx, cancel := newContext(ctx)
	defer cancel()

	filter := bson.M{"id": providerID, "currentBookingId": bookingID}
	update := bson.M{
		"$set":   bson.M{"available": true, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"currentBookingId": ""},
	}
	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to release provider %s: %w", providerID, err)
	}
	return nil
}

func (r *MongoProviderRepo) RecordRating(ctx context.Context, providerID string, rating int) error {
	ctx, cancel := newContext(ctx)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"ratingSum": rating, "ratingCount": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": providerID}, update)
	if err != nil {
		return fmt.Errorf("failed to record rating for provider %s: %w", providerID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
