package db

import (
	"context"
	"errors"
)

// ReadRetry runs read and, if it fails, runs it exactly once more. Reads
// only: callers must never route a mutation through here. Failures matching
// one of the permanent sentinels (not-found lookups) and cancelled contexts
// surface immediately without the second attempt.
func ReadRetry[T any](ctx context.Context, read func(context.Context) (T, error), permanent ...error) (T, error) {
	v, err := read(ctx)
	if err == nil || ctx.Err() != nil {
		return v, err
	}
	for _, p := range permanent {
		if errors.Is(err, p) {
			return v, err
		}
	}
	return read(ctx)
}
