package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bestcity-api/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const recentKey = "notes:recent"

func noteKey(id string) string {
	return "note:" + id
}

// HybridStore combines Redis (note documents + createdAt index) and Badger
// (note bodies). Pass badgerPath="" to keep bodies inline in Redis.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

func NewHybridStore(redisAddr string, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var db *badger.DB
	if badgerPath != "" {
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil
		var err error
		db, err = badger.Open(opts)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

func (s *HybridStore) Close(context.Context) error {
	var errs []error
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

func (s *HybridStore) Create(ctx context.Context, note *model.Note) error {
	if note.ID.IsZero() {
		note.ID = primitive.NewObjectID()
	}
	id := note.ID.Hex()
	data, err := s.putBody(note)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, noteKey(id), data, 0)
	pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(note.CreatedAt.UnixMilli()), Member: id})
	_, err = pipe.Exec(ctx)
	return err
}

// maxSaveAttempts bounds retries when a concurrent write touches the key
// between WATCH and EXEC.
const maxSaveAttempts = 10

// Save replaces an existing note. The existence check and the SET run in one
// WATCH transaction, so a note removed by a concurrent Delete stays removed.
func (s *HybridStore) Save(ctx context.Context, note *model.Note) error {
	id := note.ID.Hex()
	key := noteKey(id)
	data, err := s.putBody(note)
	if err != nil {
		return err
	}

	replace := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		err = s.rdb.Watch(ctx, replace, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, ErrNotFound) {
		// the body written above belongs to a note that is gone
		if derr := s.dropBody(id); derr != nil {
			return fmt.Errorf("drop orphan body: %w", derr)
		}
	}
	return err
}

// putBody stores the body in Badger before the document becomes visible in
// Redis and returns the Redis document.
func (s *HybridStore) putBody(note *model.Note) ([]byte, error) {
	doc := *note
	if s.db != nil {
		doc.Content = ""
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(note.ID.Hex()), []byte(note.Content))
		})
		if err != nil {
			return nil, fmt.Errorf("store note body: %w", err)
		}
	}
	return json.Marshal(doc)
}

func (s *HybridStore) dropBody(id string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(id))
	})
}

func (s *HybridStore) Get(ctx context.Context, id string) (*model.Note, error) {
	if _, err := ParseID(id); err != nil {
		return nil, err
	}
	val, err := s.rdb.Get(ctx, noteKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	notes := make([]model.Note, 1)
	if err := json.Unmarshal(val, &notes[0]); err != nil {
		return nil, err
	}
	if err := s.loadBodies(notes); err != nil {
		return nil, err
	}
	return &notes[0], nil
}

// List reads the createdAt index newest first; equal scores fall back to
// reverse id order, which is creation order for ObjectIDs.
func (s *HybridStore) List(ctx context.Context) ([]model.Note, error) {
	ids, err := s.rdb.ZRevRange(ctx, recentKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	notes := make([]model.Note, 0, len(ids))
	if len(ids) == 0 {
		return notes, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = noteKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var n model.Note
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}

	if err := s.loadBodies(notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *HybridStore) Delete(ctx context.Context, id string) error {
	if _, err := ParseID(id); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, noteKey(id))
	pipe.ZRem(ctx, recentKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}

	return s.dropBody(id)
}

// RunGC reclaims Badger value-log space until nothing is left to rewrite.
func (s *HybridStore) RunGC(discardRatio float64) error {
	if s.db == nil {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// loadBodies fills Content from Badger for documents whose body lives there.
func (s *HybridStore) loadBodies(notes []model.Note) error {
	if s.db == nil {
		return nil
	}
	return s.db.View(func(txn *badger.Txn) error {
		for i := range notes {
			item, err := txn.Get([]byte(notes[i].ID.Hex()))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				notes[i].Content = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
