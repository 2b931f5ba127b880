package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bestcity-api/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// newTestHybrid wires the store directly to miniredis and an in-memory Badger
// so nothing touches disk.
func newTestHybrid(t *testing.T) (*HybridStore, *miniredis.Miniredis, *badger.DB) {
	t.Helper()
	mr := miniredis.RunT(t)

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)

	st := &HybridStore{
		rdb: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		db:  db,
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st, mr, db
}

func TestHybridStore_Create_And_Get(t *testing.T) {
	st, mr, db := newTestHybrid(t)
	ctx := context.Background()

	note := model.NewNote("Test Note", "<p>Big Content</p>")
	require.NoError(t, st.Create(ctx, &note))
	require.False(t, note.ID.IsZero(), "Create assigns an id")
	id := note.ID.Hex()

	// Redis keeps the document without its body
	val, err := mr.Get("note:" + id)
	require.NoError(t, err)
	var doc model.Note
	require.NoError(t, json.Unmarshal([]byte(val), &doc))
	assert.Equal(t, "Test Note", doc.Title)
	assert.Empty(t, doc.Content, "Redis should NOT store the body")

	// Badger keeps the body
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			return err
		}
		body, _ := item.ValueCopy(nil)
		assert.Equal(t, note.Content, string(body))
		return nil
	})
	require.NoError(t, err)

	got, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, note.Title, got.Title)
	assert.Equal(t, note.Content, got.Content)
	assert.True(t, note.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, note.UpdatedAt.Equal(got.UpdatedAt))
}

func TestHybridStore_List_NewestFirst(t *testing.T) {
	st, _, _ := newTestHybrid(t)
	ctx := context.Background()

	empty, err := st.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		n := model.NewNote(title, title+" body")
		require.NoError(t, st.Create(ctx, &n))
		ids = append(ids, n.ID.Hex())
		time.Sleep(10 * time.Millisecond)
	}

	notes, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, ids[2], notes[0].ID.Hex())
	assert.Equal(t, ids[0], notes[2].ID.Hex())
	assert.Equal(t, "third body", notes[0].Content, "bodies are joined from Badger")
}

func TestHybridStore_List_SameMillisecondUsesIDOrder(t *testing.T) {
	st, _, _ := newTestHybrid(t)
	ctx := context.Background()

	a := model.NewNote("a", "a")
	b := a
	b.Title = "b"
	require.NoError(t, st.Create(ctx, &a))
	require.NoError(t, st.Create(ctx, &b))

	notes, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "b", notes[0].Title)
}

func TestHybridStore_Save(t *testing.T) {
	st, _, _ := newTestHybrid(t)
	ctx := context.Background()

	note := model.NewNote("A", "B")
	require.NoError(t, st.Create(ctx, &note))

	note.Apply(model.Patch{Content: model.Some("C")})
	note.TouchUpdatedAt(time.Now())
	require.NoError(t, st.Save(ctx, &note))

	got, err := st.Get(ctx, note.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "C", got.Content)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	notes, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, notes, 1, "saving does not duplicate the index entry")

	ghost := model.NewNote("ghost", "ghost")
	ghost.ID = note.ID
	require.NoError(t, st.Delete(ctx, note.ID.Hex()))
	assert.ErrorIs(t, st.Save(ctx, &ghost), ErrNotFound)
}

// TestHybridStore_SaveRacingDelete checks that a Save overlapping a Delete
// never brings the note back and leaves no orphan keys or bodies
func TestHybridStore_SaveRacingDelete(t *testing.T) {
	st, mr, db := newTestHybrid(t)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		note := model.NewNote("race", "body")
		require.NoError(t, st.Create(ctx, &note))
		id := note.ID.Hex()

		var wg sync.WaitGroup
		var saveErr, deleteErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			edited := note
			edited.Content = "edited"
			edited.TouchUpdatedAt(time.Now())
			saveErr = st.Save(ctx, &edited)
		}()
		go func() {
			defer wg.Done()
			deleteErr = st.Delete(ctx, id)
		}()
		wg.Wait()

		require.NoError(t, deleteErr)
		if saveErr != nil {
			require.ErrorIs(t, saveErr, ErrNotFound)
		}

		_, err := st.Get(ctx, id)
		require.ErrorIs(t, err, ErrNotFound, "deleted note reappeared (iteration %d)", i)
		require.False(t, mr.Exists(noteKey(id)))

		err = db.View(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte(id))
			return err
		})
		require.ErrorIs(t, err, badger.ErrKeyNotFound, "orphan body left in Badger")
	}

	notes, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestHybridStore_SaveMissingDropsBody(t *testing.T) {
	st, _, db := newTestHybrid(t)

	ghost := model.NewNote("ghost", "never stored")
	ghost.ID = primitive.NewObjectID()
	require.ErrorIs(t, st.Save(context.Background(), &ghost), ErrNotFound)

	err := db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(ghost.ID.Hex()))
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}

func TestHybridStore_Delete(t *testing.T) {
	st, mr, db := newTestHybrid(t)
	ctx := context.Background()

	note := model.NewNote("A", "B")
	require.NoError(t, st.Create(ctx, &note))
	id := note.ID.Hex()

	require.NoError(t, st.Delete(ctx, id))

	assert.False(t, mr.Exists("note:"+id))
	_, err := st.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(id))
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)

	assert.ErrorIs(t, st.Delete(ctx, id), ErrNotFound)
}

func TestHybridStore_MalformedID(t *testing.T) {
	st, _, _ := newTestHybrid(t)
	ctx := context.Background()

	_, err := st.Get(ctx, "not-an-id")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.False(t, errors.Is(err, ErrNotFound))

	assert.ErrorIs(t, st.Delete(ctx, "123"), ErrInvalidID)

	_, err = st.Get(ctx, "64b7f0c2a1b2c3d4e5f60718")
	assert.ErrorIs(t, err, ErrNotFound, "well-formed unknown ids are not found")
}

func TestHybridStore_RedisOnlyMode(t *testing.T) {
	mr := miniredis.RunT(t)

	st, err := NewHybridStore(mr.Addr(), "")
	require.NoError(t, err)
	defer st.Close(context.Background())

	ctx := context.Background()
	note := model.NewNote("inline", "body kept in redis")
	require.NoError(t, st.Create(ctx, &note))

	val, err := mr.Get("note:" + note.ID.Hex())
	require.NoError(t, err)
	assert.Contains(t, val, "body kept in redis", "without Badger the body stays inline")

	got, err := st.Get(ctx, note.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "body kept in redis", got.Content)
	assert.NoError(t, st.RunGC(0.5), "GC is a no-op without Badger")
}

func TestNewHybridStore_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewHybridStore(addr, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}
