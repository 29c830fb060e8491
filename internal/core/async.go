package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Future is the pending result of an asynchronous operation.
type Future[T any] struct {
	g   errgroup.Group
	val T
}

func goFuture[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{}
	f.g.Go(func() error {
		v, err := fn(ctx)
		f.val = v
		return err
	})
	return f
}

// Await blocks until the operation finishes. It may be called more than once.
func (f *Future[T]) Await() (T, error) {
	err := f.g.Wait()
	return f.val, err
}

// AsyncQuery runs a Query on the asynchronous source and dialect. Results are always
// materialized.
type AsyncQuery struct {
	q *Query
}

// Async returns the asynchronous form of q.
//
// Example:
//
//	rows, err := Something.All().Async().All(ctx).Await()
func (q *Query) Async() *AsyncQuery { return &AsyncQuery{q: q} }

// Query returns the wrapped query.
func (a *AsyncQuery) Query() *Query { return a.q }

// First is the asynchronous Query.First.
func (a *AsyncQuery) First(ctx context.Context) *Future[*Row] {
	return goFuture(ctx, func(ctx context.Context) (*Row, error) {
		return a.q.first(ctx, asyncMode)
	})
}

// All is the asynchronous Query.All.
func (a *AsyncQuery) All(ctx context.Context) *Future[[]*Row] {
	return goFuture(ctx, func(ctx context.Context) ([]*Row, error) {
		return a.q.fetch(ctx, asyncMode)
	})
}

// Count is the asynchronous Query.Count.
func (a *AsyncQuery) Count(ctx context.Context) *Future[int64] {
	return goFuture(ctx, func(ctx context.Context) (int64, error) {
		return a.q.count(ctx, asyncMode)
	})
}

// CountBy is the asynchronous Query.CountBy.
func (a *AsyncQuery) CountBy(ctx context.Context, items ...Expression) *Future[*Counts] {
	return goFuture(ctx, func(ctx context.Context) (*Counts, error) {
		return a.q.countBy(ctx, asyncMode, items)
	})
}

// Insert is the asynchronous Query.Insert.
func (a *AsyncQuery) Insert(ctx context.Context, values Values) *Future[interface{}] {
	return goFuture(ctx, func(ctx context.Context) (interface{}, error) {
		return a.q.insert(ctx, asyncMode, values)
	})
}

// InsertMany is the asynchronous Query.InsertMany.
func (a *AsyncQuery) InsertMany(ctx context.Context, rows []Values) *Future[[]interface{}] {
	return goFuture(ctx, func(ctx context.Context) ([]interface{}, error) {
		return a.q.insertMany(ctx, asyncMode, rows)
	})
}

// Update is the asynchronous Query.Update.
func (a *AsyncQuery) Update(ctx context.Context) *Future[int64] {
	return goFuture(ctx, func(ctx context.Context) (int64, error) {
		return a.q.update(ctx, asyncMode)
	})
}

// Delete is the asynchronous Query.Delete.
func (a *AsyncQuery) Delete(ctx context.Context) *Future[int64] {
	return goFuture(ctx, func(ctx context.Context) (int64, error) {
		return a.q.delete(ctx, asyncMode)
	})
}

// Gather awaits every future and returns the first error.
func Gather[T any](futures ...*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	var first error
	for i, f := range futures {
		v, err := f.Await()
		out[i] = v
		if err != nil && first == nil {
			first = err
		}
	}
	return out, first
}
