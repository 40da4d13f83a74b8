package api

import "context"

// Embedded wraps the item list of a page.
type Embedded[T any] struct {
	Items []T `json:"items"`
}

// Page is one page of a listing response.
type Page[T any] struct {
	Embedded     Embedded[T] `json:"_embedded"`
	CurrentCount int         `json:"current_count"`
	TotalCount   int         `json:"total_count"`
	TotalPages   int         `json:"total_pages_count"`
}

// PageFunc fetches the page at a 1-based cursor.
type PageFunc[T any] func(ctx context.Context, start int) (Page[T], error)

// FetchAll drains a paginated listing into one slice, preserving backend
// order. The cursor starts at 1; the drain stops when the reported total
// count is zero or the page count is reached. Stable paging across identical
// cursors is assumed. No item ceiling is applied here; callers enforce their
// own caps.
func FetchAll[T any](ctx context.Context, fn PageFunc[T]) ([]T, error) {
	start := 1
	var items []T
	for {
		page, err := fn(ctx, start)
		if err != nil {
			return nil, err
		}
		if page.TotalCount == 0 {
			return items, nil
		}
		items = append(items, page.Embedded.Items...)
		if page.TotalPages <= start {
			return items, nil
		}
		start++
	}
}
