package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldhand/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Create inserts a new booking document and its creation event.
func (r *MongoBookingRepo) Create(ctx context.Context, booking *models.Booking, event models.StatusEvent) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.bookingColl.InsertOne(sc, booking); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert booking failed: %w", err)
		}
		if _, err := r.eventColl.InsertOne(sc, event); err != nil {
			return fmt.Errorf("insert booking event failed: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("error creating booking %s: %w", booking.ID, err)
	}
	return nil
}

// GetByID retrieves a booking by its ID.
func (r *MongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	err := r.bookingColl.FindOne(ctx, bson.M{"id": id}).Decode(&booking)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	return &booking, nil
}

// Update replaces the booking only when the stored version still equals
// expectedVersion and records event in the same transaction.
func (r *MongoBookingRepo) Update(ctx context.Context, booking *models.Booking, expectedVersion int64, event models.StatusEvent) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	next := booking.Clone()
	next.Version = expectedVersion + 1
	event.Version = next.Version

	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		filter := bson.M{"id": booking.ID, "version": expectedVersion}
		res, err := r.bookingColl.ReplaceOne(sc, filter, next)
		if err != nil {
			return fmt.Errorf("replace booking failed: %w", err)
		}
		if res.MatchedCount == 0 {
			n, err := r.bookingColl.CountDocuments(sc, bson.M{"id": booking.ID})
			if err != nil {
				return fmt.Errorf("count booking failed: %w", err)
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
		if _, err := r.eventColl.InsertOne(sc, event); err != nil {
			return fmt.Errorf("insert booking event failed: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionConflict) {
			return err
		}
		// A write conflict inside the transaction means another writer won the race.
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
			return ErrVersionConflict
		}
		return fmt.Errorf("error updating booking %s: %w", booking.ID, err)
	}
	booking.Version = next.Version
	return nil
}

// History returns the status events of a booking ordered by version.
func (r *MongoBookingRepo) History(ctx context.Context, bookingID string) ([]models.StatusEvent, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
	cursor, err := r.eventColl.Find(ctx, bson.M{"bookingId": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for booking %s: %w", bookingID, err)
	}
	defer cursor.Close(ctx)

	events := []models.StatusEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode booking events: %w", err)
	}
	return events, nil
}
