package store

import (
	"context"
	"errors"
	"time"

	"bestcity-api/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// QueryObserver receives the duration of each store round-trip.
type QueryObserver interface {
	ObserveQuery(operation, collection string, d time.Duration)
}

// Instrumented times every call of the wrapped Store and opens a span for it.
type Instrumented struct {
	next     Store
	observer QueryObserver
	tracer   trace.Tracer
}

func Instrument(next Store, observer QueryObserver) *Instrumented {
	return &Instrumented{
		next:     next,
		observer: observer,
		tracer:   otel.Tracer("bestcity-api/store"),
	}
}

func (s *Instrumented) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "notes."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.operation", op),
			attribute.String("db.collection", Collection),
		),
	)
	return ctx, func(err error) {
		s.observer.ObserveQuery(op, Collection, time.Since(start))
		if err != nil && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (s *Instrumented) Create(ctx context.Context, note *model.Note) (err error) {
	ctx, done := s.observe(ctx, "create")
	defer func() { done(err) }()
	return s.next.Create(ctx, note)
}

func (s *Instrumented) List(ctx context.Context) (notes []model.Note, err error) {
	ctx, done := s.observe(ctx, "find")
	defer func() { done(err) }()
	return s.next.List(ctx)
}

func (s *Instrumented) Get(ctx context.Context, id string) (note *model.Note, err error) {
	ctx, done := s.observe(ctx, "findById")
	defer func() { done(err) }()
	return s.next.Get(ctx, id)
}

func (s *Instrumented) Save(ctx context.Context, note *model.Note) (err error) {
	ctx, done := s.observe(ctx, "save")
	defer func() { done(err) }()
	return s.next.Save(ctx, note)
}

func (s *Instrumented) Delete(ctx context.Context, id string) (err error) {
	ctx, done := s.observe(ctx, "findByIdAndDelete")
	defer func() { done(err) }()
	return s.next.Delete(ctx, id)
}

func (s *Instrumented) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
