package store

import (
	"context"
	"time"
)

// DisabledStore rejects every operation with ErrUnavailable, matching
// original_source/openbridge/config.py's "disabled" state backend literal.
type DisabledStore struct{}

func (DisabledStore) Get(context.Context, string) (StoredTurn, error) { return StoredTurn{}, ErrUnavailable }
func (DisabledStore) Put(context.Context, string, StoredTurn, time.Duration) error {
	return ErrUnavailable
}
func (DisabledStore) Delete(context.Context, string) (bool, error) { return false, ErrUnavailable }
