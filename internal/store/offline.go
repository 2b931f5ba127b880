package store

import (
	"context"
	"fmt"

	"bestcity-api/internal/model"
)

// offlineStore stands in when no database could be configured.
type offlineStore struct {
	err error
}

// Offline returns a Store whose every call fails with ErrNotConnected.
func Offline(reason error) Store {
	return &offlineStore{err: fmt.Errorf("%w: %v", ErrNotConnected, reason)}
}

func (s *offlineStore) Create(context.Context, *model.Note) error        { return s.err }
func (s *offlineStore) List(context.Context) ([]model.Note, error)       { return nil, s.err }
func (s *offlineStore) Get(context.Context, string) (*model.Note, error) { return nil, s.err }
func (s *offlineStore) Save(context.Context, *model.Note) error          { return s.err }
func (s *offlineStore) Delete(context.Context, string) error             { return s.err }
func (s *offlineStore) Close(context.Context) error                      { return nil }
