package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	customErrors "github.com/vidhost/auth-service/internal/domain/auth/errors"
	"github.com/vidhost/auth-service/internal/domain/auth/model"
)

func TestIdentifierFilter(t *testing.T) {
	f := identifierFilter("alice")
	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	require.Equal(t, bson.M{"username": "alice"}, or[0])
	require.Equal(t, bson.M{"email": "alice"}, or[1])
}

func TestUserRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "vidhost.users"

	mt.Run("create", func(mt *mtest.T) {
		repo := newUserRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := repo.CreateUser(context.Background(), model.User{ID: "u1", Username: "alice", Email: "a@x.com"})
		require.NoError(t, err)
		require.Equal(t, "u1", id)
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		repo := newUserRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := repo.CreateUser(context.Background(), model.User{ID: "u1", Username: "alice", Email: "a@x.com"})
		require.True(t, customErrors.IsAlreadyExists(err), "got %v", err)
	})

	mt.Run("find by identifier", func(mt *mtest.T) {
		repo := newUserRepo(mt.Coll)
		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "username", Value: "alice"},
			{Key: "email", Value: "a@x.com"},
			{Key: "fullname", Value: "Alice A"},
			{Key: "password_hash", Value: "$2a$10$hash"},
			{Key: "watch_history", Value: bson.A{"v1"}},
			{Key: "created_at", Value: created},
		}))

		u, err := repo.FindByIdentifier(context.Background(), "alice")
		require.NoError(t, err)
		require.Equal(t, "u1", u.ID)
		require.Equal(t, "Alice A", u.FullName)
		require.Equal(t, "$2a$10$hash", u.PasswordHash)
		require.Equal(t, []string{"v1"}, u.WatchHistory)
		require.True(t, created.Equal(u.CreatedAt))
	})

	mt.Run("get missing", func(mt *mtest.T) {
		repo := newUserRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.GetUserByID(context.Background(), "nope")
		require.True(t, customErrors.IsNotFound(err), "got %v", err)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		repo := newUserRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.UpdateUser(context.Background(), model.User{ID: "nope"})
		require.True(t, customErrors.IsNotFound(err), "got %v", err)
	})

	mt.Run("update", func(mt *mtest.T) {
		repo := newUserRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(t, repo.UpdateUser(context.Background(), model.User{ID: "u1"}))
	})

	mt.Run("server error is internal", func(mt *mtest.T) {
		repo := newUserRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
			Name:    "BadValue",
		}))

		_, err := repo.GetUserByID(context.Background(), "u1")
		require.True(t, customErrors.IsInternal(err), "got %v", err)
	})
}
