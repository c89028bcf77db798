package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

var validate = validator.New()

type Option func(*base)

// WithClock replaces time.Now. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithLocation sets the calendar used for days and business days.
func WithLocation(loc *time.Location) Option {
	return func(b *base) {
		if loc != nil {
			b.loc = loc
		}
	}
}

func WithLogger(l internal.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRetry bounds how often a unit of work is retried on storage.ErrTransient.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(b *base) {
		if attempts > 0 {
			b.attempts = attempts
		}
		b.backoff = backoff
	}
}

type base struct {
	store    storage.Store
	logger   internal.Logger
	now      func() time.Time
	loc      *time.Location
	attempts int
	backoff  time.Duration
}

func newBase(store storage.Store, opts ...Option) base {
	b := base{
		store:    store,
		logger:   internal.NopLogger(),
		now:      time.Now,
		loc:      time.Local,
		attempts: 3,
		backoff:  20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// clock is the server time used for every stored instant: UTC, whole seconds.
func (b *base) clock() time.Time {
	return b.now().UTC().Truncate(time.Second)
}

func (b *base) Location() *time.Location { return b.loc }

// withinTx runs fn as one unit of work for workerID, retrying transient
// storage failures. fn must be safe to run more than once.
func (b *base) withinTx(ctx context.Context, workerID int64, fn func(ctx context.Context, tx storage.Tx) error) error {
	var err error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		err = b.store.WithinWorkerTx(ctx, workerID, fn)
		if err == nil || !errors.Is(err, storage.ErrTransient) {
			return err
		}
		b.logger.Warnf("worker %d: transient storage failure (attempt %d/%d): %v", workerID, attempt, b.attempts, err)
		if attempt == b.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * b.backoff):
		}
	}
	return err
}

// Now is the server clock as stored on entries and records.
func (b *base) Now() time.Time { return b.clock() }
