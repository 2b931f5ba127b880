package store

import (
	"context"
	"errors"
	"fmt"

	"bestcity-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps notes as documents in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(Collection),
	}
}

func (s *MongoStore) Create(ctx context.Context, note *model.Note) error {
	if note.ID.IsZero() {
		note.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, note); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]model.Note, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find notes: %w", err)
	}
	notes := []model.Note{}
	if err := cur.All(ctx, &notes); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	return notes, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*model.Note, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var note model.Note
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&note)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find note %s: %w", id, err)
	}
	return &note, nil
}

func (s *MongoStore) Save(ctx context.Context, note *model.Note) error {
	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: note.ID}}, note)
	if err != nil {
		return fmt.Errorf("replace note %s: %w", note.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close disconnects the shared client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
