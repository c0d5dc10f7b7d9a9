package models

import "time"

// StatusEvent is one append-only entry of a booking's history.
type StatusEvent struct {
	ID        string        `bson:"id" json:"id"`
	BookingID string        `bson:"bookingId" json:"bookingId"`
	From      BookingStatus `bson:"from" json:"from"`
	To        BookingStatus `bson:"to" json:"to"`
	Trigger   string        `bson:"trigger" json:"trigger"`
	Actor     Actor         `bson:"actor" json:"actor"`
	Version   int64         `bson:"version" json:"version"`
	Note      string        `bson:"note,omitempty" json:"note,omitempty"`
	At        time.Time     `bson:"at" json:"at"`
}
