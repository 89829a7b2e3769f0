package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionUsers       = "users"
	collectionResetTokens = "resetTokens"
	collectionAttempts    = "failedAttempts"
)

// Store bundles the collection handles over one database.
type Store struct {
	Users       *Users
	ResetTokens *ResetTokens
	Attempts    *Attempts

	db *mongo.Database
}

// Connect dials MongoDB, verifies the connection with a ping and returns
// a Store over the named database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}
	return New(client.Database(database)), nil
}

// New wraps an already-connected database.
func New(db *mongo.Database) *Store {
	return &Store{
		Users:       &Users{col: db.Collection(collectionUsers)},
		ResetTokens: &ResetTokens{col: db.Collection(collectionResetTokens)},
		Attempts:    &Attempts{col: db.Collection(collectionAttempts)},
		db:          db,
	}
}

// EnsureIndexes creates the indexes the store's invariants depend on.
// The email index is unique with case-insensitive collation, so lookups
// and the duplicate check agree on what "same email" means. The apiKey
// index is sparse: accounts without a key must not collide on the
// missing value.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.Users.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{
			Keys:    bson.D{{Key: "apiKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "federatedId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return err
	}
	_, err = s.ResetTokens.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.Attempts.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "action", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Disconnect closes the underlying client.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

var caseInsensitive = options.Collation{Locale: "en", Strength: 2}
