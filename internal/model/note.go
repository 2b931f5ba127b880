package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TitleMaxLength is the longest title accepted, in characters.
const TitleMaxLength = 200

// Note is the persisted document.
type Note struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title" validate:"required,max=200"`
	Content   string             `bson:"content" json:"content" validate:"required"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewNote creates an unsaved Note with trimmed fields and both timestamps set
// to the same instant. The store assigns the ID.
func NewNote(title, content string) Note {
	now := Now()
	return Note{
		Title:     strings.TrimSpace(title),
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Now returns the current time at document-store precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Apply overwrites the fields present in p, trimmed.
func (n *Note) Apply(p Patch) {
	if v, ok := p.Title.Get(); ok {
		n.Title = strings.TrimSpace(v)
	}
	if v, ok := p.Content.Get(); ok {
		n.Content = strings.TrimSpace(v)
	}
}

// TouchUpdatedAt moves UpdatedAt to now. UpdatedAt always advances: on a
// clock tie or skew it is bumped one millisecond past its previous value.
func (n *Note) TouchUpdatedAt(now time.Time) {
	now = now.UTC().Truncate(time.Millisecond)
	if !now.After(n.UpdatedAt) {
		now = n.UpdatedAt.Add(time.Millisecond)
	}
	n.UpdatedAt = now
}

// Projection is the client-facing view of a Note.
type Projection struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n Note) Project() Projection {
	return Projection{
		ID:        n.ID.Hex(),
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
