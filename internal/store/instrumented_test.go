package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bestcity-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type query struct {
	op         string
	collection string
}

type fakeObserver struct {
	mu      sync.Mutex
	queries []query
}

func (f *fakeObserver) ObserveQuery(op, collection string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query{op, collection})
}

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestInstrumented_ObservesEveryOperation(t *testing.T) {
	rec := useRecorder(t)
	inner, _, _ := newTestHybrid(t)
	obs := &fakeObserver{}
	st := Instrument(inner, obs)
	ctx := context.Background()

	note := model.NewNote("title", "content")
	require.NoError(t, st.Create(ctx, &note))
	_, err := st.List(ctx)
	require.NoError(t, err)
	_, err = st.Get(ctx, note.ID.Hex())
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, &note))
	require.NoError(t, st.Delete(ctx, note.ID.Hex()))

	assert.Equal(t, []query{
		{"create", "notes"},
		{"find", "notes"},
		{"findById", "notes"},
		{"save", "notes"},
		{"findByIdAndDelete", "notes"},
	}, obs.queries)

	spans := rec.Ended()
	require.Len(t, spans, 5)
	assert.Equal(t, "notes.create", spans[0].Name())
	for _, s := range spans {
		assert.Equal(t, codes.Unset, s.Status().Code)
	}
}

func TestInstrumented_RecordsFailures(t *testing.T) {
	rec := useRecorder(t)
	obs := &fakeObserver{}
	st := Instrument(Offline(errors.New("down")), obs)

	_, err := st.List(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)

	require.Len(t, obs.queries, 1, "failed queries are timed too")
	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestInstrumented_NotFoundIsNotASpanError(t *testing.T) {
	rec := useRecorder(t)
	inner, _, _ := newTestHybrid(t)
	st := Instrument(inner, &fakeObserver{})

	_, err := st.Get(context.Background(), "64b7f0c2a1b2c3d4e5f60718")
	require.ErrorIs(t, err, ErrNotFound)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}
