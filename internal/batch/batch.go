// Package batch fans work out over fixed-size batches and collects the
// results. A failed batch contributes zero results instead of aborting
// its siblings; partial output is always preferred to none.
package batch

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultSize is the batch size used when the caller passes 0.
const DefaultSize = 10

// Split divides items into consecutive batches of at most size elements.
// The final batch holds the remainder.
func Split[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultSize
	}

	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// Run splits items into batches of size and executes fn once per batch,
// all batches concurrently. Results are flattened in batch order. A batch
// whose fn returns an error is logged and dropped; the others proceed.
func Run[T, R any](ctx context.Context, items []T, size int, fn func(ctx context.Context, batch []T) ([]R, error)) []R {
	batches := Split(items, size)
	if len(batches) == 0 {
		return nil
	}

	results := make([][]R, len(batches))

	g, gCtx := errgroup.WithContext(ctx)
	for i, b := range batches {
		i, b := i, b
		g.Go(func() error {
			out, err := fn(gCtx, b)
			if err != nil {
				zap.L().Warn("batch: batch failed",
					zap.Int("batch", i),
					zap.Int("items", len(b)),
					zap.Error(err),
				)
				return nil // sibling batches keep going
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	var flat []R
	for _, r := range results {
		flat = append(flat, r...)
	}
	return flat
}
