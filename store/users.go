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

// Users implements caseauth.CredentialStore.
type Users struct {
	col *mongo.Collection
}

type userDoc struct {
	ID           string     `bson:"_id"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"passwordHash,omitempty"`
	Roles        []string   `bson:"roles"`
	APIKey       string     `bson:"apiKey,omitempty"`
	FederatedID  string     `bson:"federatedId,omitempty"`
	Profile      profileDoc `bson:"profile"`
	CreatedAt    time.Time  `bson:"createdAt"`
}

type profileDoc struct {
	DisplayName string `bson:"displayName,omitempty"`
	PictureURL  string `bson:"pictureUrl,omitempty"`
	Newsletter  bool   `bson:"newsletter"`
}

func toUserDoc(u *caseauth.User) userDoc {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	return userDoc{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Roles:        roles,
		APIKey:       u.APIKey,
		FederatedID:  u.FederatedID,
		Profile: profileDoc{
			DisplayName: u.Profile.DisplayName,
			PictureURL:  u.Profile.PictureURL,
			Newsletter:  u.Profile.Newsletter,
		},
		CreatedAt: u.CreatedAt,
	}
}

func (d userDoc) toUser() *caseauth.User {
	roles := make([]caseauth.Role, len(d.Roles))
	for i, r := range d.Roles {
		roles[i] = caseauth.Role(r)
	}
	return &caseauth.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Roles:        roles,
		APIKey:       d.APIKey,
		FederatedID:  d.FederatedID,
		Profile: caseauth.Profile{
			DisplayName: d.Profile.DisplayName,
			PictureURL:  d.Profile.PictureURL,
			Newsletter:  d.Profile.Newsletter,
		},
		CreatedAt: d.CreatedAt,
	}
}

func (s *Users) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*caseauth.User, error) {
	var doc userDoc
	err := s.col.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, caseauth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

// FindByEmail looks a user up by email, case-insensitively via the email
// index's collation.
func (s *Users) FindByEmail(ctx context.Context, email string) (*caseauth.User, error) {
	return s.findOne(ctx, bson.M{"email": email},
		options.FindOne().SetCollation(&caseInsensitive))
}

func (s *Users) FindByID(ctx context.Context, id string) (*caseauth.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Users) FindByAPIKey(ctx context.Context, key string) (*caseauth.User, error) {
	return s.findOne(ctx, bson.M{"apiKey": key})
}

func (s *Users) FindByFederatedID(ctx context.Context, federatedID string) (*caseauth.User, error) {
	return s.findOne(ctx, bson.M{"federatedId": federatedID})
}

// Insert stores a new user. A duplicate email, decided by the unique
// index rather than any pre-check, maps to [caseauth.ErrEmailExists].
func (s *Users) Insert(ctx context.Context, user *caseauth.User) error {
	_, err := s.col.InsertOne(ctx, toUserDoc(user))
	if mongo.IsDuplicateKeyError(err) {
		return caseauth.ErrEmailExists
	}
	return err
}

func (s *Users) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"passwordHash": hash}})
}

// UpdateAPIKey sets the user's API key; an empty key unsets the field so
// the sparse unique index ignores the account.
func (s *Users) UpdateAPIKey(ctx context.Context, id, key string) error {
	if key == "" {
		return s.updateOne(ctx, id, bson.M{"$unset": bson.M{"apiKey": ""}})
	}
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"apiKey": key}})
}

func (s *Users) UpdateProfile(ctx context.Context, id string, profile caseauth.Profile) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"profile": profileDoc{
		DisplayName: profile.DisplayName,
		PictureURL:  profile.PictureURL,
		Newsletter:  profile.Newsletter,
	}}})
}

func (s *Users) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return caseauth.ErrUserNotFound
	}
	return nil
}
