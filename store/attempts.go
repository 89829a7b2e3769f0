package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/casecurate/caseauth"
)

// Attempts implements caseauth.FailedAttemptStore with one document per
// (user, action) pair.
type Attempts struct {
	col *mongo.Collection
}

type attemptDoc struct {
	UserID    string    `bson:"userId"`
	Action    string    `bson:"action"`
	Count     int       `bson:"count"`
	LastReset time.Time `bson:"lastReset"`
}

// Get returns the counter for the pair, or a zero-count record when the
// pair has never been written.
func (s *Attempts) Get(ctx context.Context, userID string, action caseauth.AttemptAction) (*caseauth.FailedAttempt, error) {
	var doc attemptDoc
	err := s.col.FindOne(ctx, bson.M{"userId": userID, "action": string(action)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &caseauth.FailedAttempt{UserID: userID, Action: action}, nil
	}
	if err != nil {
		return nil, err
	}
	return &caseauth.FailedAttempt{
		UserID:    doc.UserID,
		Action:    caseauth.AttemptAction(doc.Action),
		Count:     doc.Count,
		LastReset: doc.LastReset,
	}, nil
}

// Set upserts the counter for the pair.
func (s *Attempts) Set(ctx context.Context, userID string, action caseauth.AttemptAction, count int) error {
	update := bson.M{"$set": bson.M{"count": count}}
	if count == 0 {
		update["$currentDate"] = bson.M{"lastReset": true}
	}
	_, err := s.col.UpdateOne(ctx,
		bson.M{"userId": userID, "action": string(action)},
		update,
		options.Update().SetUpsert(true))
	return err
}
