// Package cache persists simulation outputs as blobs and serves them back
// only while they still describe the live set of finalized results.
package cache

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a BlobStore when the key has no value.
var ErrNotFound = errors.New("cache: key not found")

// BlobStore is a durable key/value store. Put must replace the value
// atomically: a reader sees either the previous value or the new one.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func SeasonKey(season, trials int) string {
	return fmt.Sprintf("projection_%d_%d", season, trials)
}

func RoundsKey(season int) string {
	return fmt.Sprintf("rounds_%d", season)
}

func ProbabilitiesKey(season int) string {
	return fmt.Sprintf("probs_%d", season)
}
