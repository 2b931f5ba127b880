package store

import (
	"context"
	"testing"
	"time"

	"bestcity-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const mockNS = "bestcity.notes"

func noteDoc(id primitive.ObjectID, title, content string, at time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: title},
		{Key: "content", Value: content},
		{Key: "createdAt", Value: primitive.NewDateTimeFromTime(at)},
		{Key: "updatedAt", Value: primitive.NewDateTimeFromTime(at)},
	}
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create assigns id", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		note := model.NewNote("title", "content")
		require.NoError(mt, st.Create(context.Background(), &note))
		assert.False(mt, note.ID.IsZero())
	})

	mt.Run("create write error", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		note := model.NewNote("title", "content")
		err := st.Create(context.Background(), &note)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "insert note")
	})

	mt.Run("list decodes documents", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		now := model.Now()
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch,
			noteDoc(b, "newer", "2", now),
			noteDoc(a, "older", "1", now.Add(-time.Minute)),
		))

		notes, err := st.List(context.Background())
		require.NoError(mt, err)
		require.Len(mt, notes, 2)
		assert.Equal(mt, b, notes[0].ID)
		assert.Equal(mt, "older", notes[1].Title)
		assert.True(mt, now.Equal(notes[0].CreatedAt))
	})

	mt.Run("list empty is not nil", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch))

		notes, err := st.List(context.Background())
		require.NoError(mt, err)
		assert.NotNil(mt, notes)
		assert.Empty(mt, notes)
	})

	mt.Run("get found", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch,
			noteDoc(id, "title", "content", model.Now()),
		))

		note, err := st.Get(context.Background(), id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, "content", note.Content)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch))

		_, err := st.Get(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("get malformed id skips the round-trip", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")

		_, err := st.Get(context.Background(), "nope")
		assert.ErrorIs(mt, err, ErrInvalidID)
	})

	mt.Run("save unmatched", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		note := model.NewNote("title", "content")
		note.ID = primitive.NewObjectID()
		assert.ErrorIs(mt, st.Save(context.Background(), &note), ErrNotFound)
	})

	mt.Run("save matched", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		note := model.NewNote("title", "content")
		note.ID = primitive.NewObjectID()
		assert.NoError(mt, st.Save(context.Background(), &note))
	})

	mt.Run("delete", func(mt *mtest.T) {
		st := NewMongoStore(mt.Client, "bestcity")
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		id := primitive.NewObjectID().Hex()
		assert.NoError(mt, st.Delete(context.Background(), id))
		assert.ErrorIs(mt, st.Delete(context.Background(), id), ErrNotFound)
	})
}
