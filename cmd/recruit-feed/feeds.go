package main

import (
	"context"

	"github.com/Sternrassler/recruit-client/pkg/pagination"
)

// feed is a list controller as seen by the HTTP handlers.
type feed interface {
	snapshot() any
	filter() string
	mount(ctx context.Context) error
	setFilter(ctx context.Context, filter string) error
	loadMore(ctx context.Context) error
	visible(id pagination.ID) bool
	wait()
	delete(ctx context.Context, id pagination.ID) error
	SetIdentity(ctx context.Context, identity pagination.Identity) error
	close()
}

// listFeed adapts a typed controller and its delete mutation.
type listFeed[T pagination.Item] struct {
	ctrl   *pagination.Controller[T]
	remove func(ctx context.Context, id pagination.ID) error
}

func newListFeed[T pagination.Item](ctrl *pagination.Controller[T], remove func(context.Context, pagination.ID) error) *listFeed[T] {
	return &listFeed[T]{ctrl: ctrl, remove: remove}
}

func (f *listFeed[T]) snapshot() any { return f.ctrl.Snapshot() }

func (f *listFeed[T]) filter() string { return f.ctrl.Filter() }

func (f *listFeed[T]) mount(ctx context.Context) error { return f.ctrl.Mount(ctx) }

func (f *listFeed[T]) setFilter(ctx context.Context, filter string) error {
	return f.ctrl.SetFilter(ctx, filter)
}

func (f *listFeed[T]) loadMore(ctx context.Context) error { return f.ctrl.LoadMore(ctx) }

func (f *listFeed[T]) visible(id pagination.ID) bool { return f.ctrl.Visible(id) }

func (f *listFeed[T]) wait() { f.ctrl.Wait() }

// delete removes the item server-side, then from the held lists.
func (f *listFeed[T]) delete(ctx context.Context, id pagination.ID) error {
	if err := f.remove(ctx, id); err != nil {
		return err
	}
	f.ctrl.Remove(id)
	return nil
}

func (f *listFeed[T]) SetIdentity(ctx context.Context, identity pagination.Identity) error {
	return f.ctrl.SetIdentity(ctx, identity)
}

func (f *listFeed[T]) close() { f.ctrl.Close() }
