// Package mongo stores user records in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

const collectionName = "users"

type UserRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return newUserRepo(db.Collection(collectionName))
}

func newUserRepo(coll *mongo.Collection) *UserRepo {
	return &UserRepo{coll: coll, now: time.Now}
}

// EnsureIndexes creates the unique indexes on username and email.
func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return customErrors.WrapInternal(err, "EnsureIndexes")
	}
	return nil
}

func (r *UserRepo) CreateUser(ctx context.Context, u model.User) (string, error) {
	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.WatchHistory == nil {
		u.WatchHistory = []string{}
	}

	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", customErrors.ErrAlreadyExists
		}
		return "", customErrors.WrapInternal(err, "CreateUser")
	}
	return u.ID, nil
}

func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	return r.findOne(ctx, identifierFilter(identifier), "FindByIdentifier")
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "GetUserByID")
}

func (r *UserRepo) UpdateUser(ctx context.Context, u model.User) error {
	u.UpdatedAt = r.now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return customErrors.ErrAlreadyExists
		}
		return customErrors.WrapInternal(err, "UpdateUser")
	}
	if res.MatchedCount == 0 {
		return customErrors.ErrNotFound
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M, op string) (model.User, error) {
	var u model.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err != nil {
		return model.User{}, customErrors.WrapInternal(err, op)
	}
	return u, nil
}

func identifierFilter(identifier string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": identifier},
	}}
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, customErrors.WrapInternal(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, customErrors.WrapInternal(err, "mongo ping")
	}
	return client, nil
}
