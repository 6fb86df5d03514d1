package pagination

import "context"

// Source serves pages of a list endpoint.
type Source[T Item] interface {
	List(ctx context.Context, req PageRequest) (PageResponse[T], error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[T Item] func(ctx context.Context, req PageRequest) (PageResponse[T], error)

// List implements Source.
func (f SourceFunc[T]) List(ctx context.Context, req PageRequest) (PageResponse[T], error) {
	return f(ctx, req)
}
