package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/casecurate/caseauth"
)

// ResetTokens implements caseauth.ResetTokenStore. At most one token per
// user is live at any time.
type ResetTokens struct {
	col *mongo.Collection
}

type resetTokenDoc struct {
	UserID    string    `bson:"userId"`
	TokenHash string    `bson:"tokenHash"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Replace removes any prior token for the user and inserts the new one,
// so the most recent reset request invalidates earlier links.
func (s *ResetTokens) Replace(ctx context.Context, token *caseauth.ResetToken) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"userId": token.UserID}); err != nil {
		return err
	}
	_, err := s.col.InsertOne(ctx, resetTokenDoc{
		UserID:    token.UserID,
		TokenHash: token.TokenHash,
		CreatedAt: token.CreatedAt,
	})
	return err
}

// Find returns the user's live token, or [caseauth.ErrResetTokenInvalid]
// when none exists.
func (s *ResetTokens) Find(ctx context.Context, userID string) (*caseauth.ResetToken, error) {
	var doc resetTokenDoc
	err := s.col.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, caseauth.ErrResetTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	return &caseauth.ResetToken{
		UserID:    doc.UserID,
		TokenHash: doc.TokenHash,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *ResetTokens) Delete(ctx context.Context, userID string) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}
