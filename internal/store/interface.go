package store

import (
	"context"
	"errors"
	"fmt"

	"bestcity-api/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection is the document collection notes live in.
const Collection = "notes"

var (
	ErrNotFound     = errors.New("note not found")
	ErrInvalidID    = errors.New("invalid note id")
	ErrNotConnected = errors.New("database is not connected")
)

// Store persists notes. Implementations are safe for concurrent use.
type Store interface {
	// Create assigns an ID when the note has none and inserts it.
	Create(ctx context.Context, note *model.Note) error
	// List returns every note, newest createdAt first.
	List(ctx context.Context) ([]model.Note, error)
	Get(ctx context.Context, id string) (*model.Note, error)
	// Save replaces an existing note; ErrNotFound if it is gone.
	Save(ctx context.Context, note *model.Note) error
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

// ParseID decodes an external note reference.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w %q: %v", ErrInvalidID, id, err)
	}
	return oid, nil
}
