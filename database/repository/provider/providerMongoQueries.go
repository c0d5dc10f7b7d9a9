package providerRepo

import (
	"context"
	"fmt"
	"sort"

	"fieldhand/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ListAvailable returns available providers for a category ordered by average rating.
// The average is computed server-side so the limit applies after ranking.
func (r *MongoProviderRepo) ListAvailable(ctx context.Context, categoryID string, limit int) ([]models.Provider, error) {
	ctx, cancel := newContext(ctx)
	defer cancel()

	cursor, err := r.coll.Aggregate(ctx, availablePipeline(categoryID, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query available providers: %w", err)
	}
	defer cursor.Close(ctx)

	providers := []models.Provider{}
	if err := cursor.All(ctx, &providers); err != nil {
		return nil, fmt.Errorf("failed to decode providers: %w", err)
	}
	return providers, nil
}

// availablePipeline ranks by ratingSum/ratingCount (0 when unrated), then by
// number of ratings, then id.
func availablePipeline(categoryID string, limit int) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"categoryIds": categoryID, "available": true}}},
		{{Key: "$addFields", Value: bson.M{
			"avgRating": bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{"$ratingCount", 0}},
				bson.M{"$divide": bson.A{"$ratingSum", "$ratingCount"}},
				0,
			}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "avgRating", Value: -1},
			{Key: "ratingCount", Value: -1},
			{Key: "id", Value: 1},
		}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return append(pipeline, bson.D{{Key: "$project", Value: bson.M{"avgRating": 0}}})
}

func sortByRating(providers []models.Provider) {
	sort.SliceStable(providers, func(i, j int) bool {
		a, b := providers[i].AverageRating(), providers[j].AverageRating()
		if a != b {
			return a > b
		}
		if providers[i].RatingCount != providers[j].RatingCount {
			return providers[i].RatingCount > providers[j].RatingCount
		}
		return providers[i].ID < providers[j].ID
	})
}
