package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

type userDoc struct {
	Phone      string   `bson:"_id"`
	AccessCode string   `bson:"accessCode,omitempty"`
	Favorites  []string `bson:"favoriteGithubUsers,omitempty"`
}

// Mongo keeps one document per phone number, keyed by _id.
type Mongo struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongo connects and pings within five seconds.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &Mongo{client: client, users: client.Database(database).Collection(usersCollection)}, nil
}

func (m *Mongo) upsert(ctx context.Context, phone string, update bson.M) error {
	_, err := m.users.UpdateOne(ctx, bson.M{"_id": phone}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (m *Mongo) find(ctx context.Context, phone string) (userDoc, bool, error) {
	var doc userDoc
	err := m.users.FindOne(ctx, bson.M{"_id": phone}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return userDoc{}, false, nil
	}
	if err != nil {
		return userDoc{}, false, err
	}
	return doc, true, nil
}

func (m *Mongo) SaveAccessCode(ctx context.Context, phone, code string) error {
	return m.upsert(ctx, phone, bson.M{"$set": bson.M{"accessCode": code}})
}

func (m *Mongo) ValidateAccessCode(ctx context.Context, phone, code string) (bool, error) {
	doc, ok, err := m.find(ctx, phone)
	if err != nil || !ok {
		return false, err
	}
	return doc.AccessCode != "" && doc.AccessCode == code, nil
}

func (m *Mongo) ClearAccessCode(ctx context.Context, phone string) error {
	_, err := m.users.UpdateOne(ctx, bson.M{"_id": phone}, bson.M{"$unset": bson.M{"accessCode": ""}})
	return err
}

// LikeGithubUser uses $addToSet, which appends only when absent.
func (m *Mongo) LikeGithubUser(ctx context.Context, phone, githubUserID string) error {
	return m.upsert(ctx, phone, bson.M{"$addToSet": bson.M{"favoriteGithubUsers": githubUserID}})
}

func (m *Mongo) FavoriteGithubUsers(ctx context.Context, phone string) ([]string, error) {
	doc, ok, err := m.find(ctx, phone)
	if err != nil {
		return nil, err
	}
	if !ok || doc.Favorites == nil {
		return []string{}, nil
	}
	return doc.Favorites, nil
}

func (m *Mongo) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
