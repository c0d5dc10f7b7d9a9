package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"fieldhand/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// List returns bookings matching filter, newest first.
func (r *MongoBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	query := bson.M{}
	if filter.CustomerID != "" {
		query["customerId"] = filter.CustomerID
	}
	if filter.ProviderID != "" {
		query["providerId"] = filter.ProviderID
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(clampLimit(filter.Limit)))
	return r.find(ctx, query, opts)
}

// ListExpiredPending returns unpaid pending bookings created before cutoff.
func (r *MongoBookingRepo) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	query := bson.M{
		"status":                models.StatusPending,
		"createdAt":             bson.M{"$lt": cutoff},
		"initialPayment.status": bson.M{"$ne": models.PaymentPaid},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(clampLimit(limit)))
	return r.find(ctx, query, opts)
}

// ListUnassignedConfirmed returns confirmed bookings whose provider is still null.
func (r *MongoBookingRepo) ListUnassignedConfirmed(ctx context.Context, limit int) ([]models.Booking, error) {
	query := bson.M{
		"status":     models.StatusConfirmed,
		"providerId": nil,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(clampLimit(limit)))
	return r.find(ctx, query, opts)
}

// ListStaleRefunds returns in-flight refunds untouched since before.
func (r *MongoBookingRepo) ListStaleRefunds(ctx context.Context, before time.Time, limit int) ([]models.Booking, error) {
	query := bson.M{
		"refundStatus": bson.M{"$in": []models.RefundStatus{models.RefundRequested, models.RefundProcessing}},
		"updatedAt":    bson.M{"$lt": before},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: 1}}).
		SetLimit(int64(clampLimit(limit)))
	return r.find(ctx, query, opts)
}

func (r *MongoBookingRepo) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Booking, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.bookingColl.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	for cursor.Next(ctx) {
		var b models.Booking
		if err := cursor.Decode(&b); err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("booking cursor error: %w", err)
	}
	return bookings, nil
}
