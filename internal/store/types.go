/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that the store could not be reached or answered
// with an error. Features backed by the store surface it as "unavailable";
// they never degrade to best-effort behavior.
var ErrUnavailable = errors.New("store unavailable")

// Store is the contract the notification tracker and analytics aggregator
// require from the key-value store. Every method is a single logical round
// trip; implementations must not split one call into racy read-then-write
// sequences.
type Store interface {
	// Healthy reports whether the store is reachable right now. Used for
	// the degraded-mode indicator.
	Healthy(ctx context.Context) error

	// ClaimMember atomically adds a member to the set at key and refreshes
	// the key's TTL. It returns true when this call added the member,
	// false when the member was already present. Exactly one of two
	// concurrent claims for the same member returns true.
	ClaimMember(ctx context.Context, key, member string, ttl time.Duration) (bool, error)

	// IsMember reports set membership without modifying anything.
	IsMember(ctx context.Context, key, member string) (bool, error)

	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Keys lists the keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// PutIndexed writes value at key with a TTL and registers key in the
	// sorted index under score, as one atomic pipeline.
	PutIndexed(ctx context.Context, indexKey, key string, score float64, value []byte, ttl time.Duration) error

	// IndexRange returns the keys registered in the index with scores in
	// [min, max], in ascending score order.
	IndexRange(ctx context.Context, indexKey string, min, max float64) ([]string, error)

	// GetMulti fetches many values at once. Missing keys yield nil entries.
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)

	// PruneIndex deletes every indexed key with score in [min, max] and
	// drops it from the index, returning how many were removed. Idempotent.
	PruneIndex(ctx context.Context, indexKey string, min, max float64) (int64, error)

	// IndexCard returns the number of entries in the index.
	IndexCard(ctx context.Context, indexKey string) (int64, error)
}
