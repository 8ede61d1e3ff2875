package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the last persisted aggregate for an order, cached so a
// recomputation can detect divergence from what was previously served.
type Snapshot struct {
	Subtotal   string    `json:"subtotal"`
	Total      string    `json:"total"`
	Remaining  string    `json:"remaining"`
	ComputedAt time.Time `json:"computed_at"`
}

// SnapshotCache stores ledger snapshots in Redis keyed by order id.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache builds a cache. A zero ttl keeps snapshots until the
// next recompute overwrites them.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(orderID int64) string {
	return fmt.Sprintf("ledger:order:%d:snapshot", orderID)
}

// Compare returns the cached snapshot for the order and whether the
// freshly computed totals diverge from it. A missing snapshot is not
// divergence.
func (c *SnapshotCache) Compare(ctx context.Context, orderID int64, t Totals) (bool, *Snapshot, error) {
	if c == nil || c.client == nil {
		return false, nil, nil
	}
	raw, err := c.client.Get(ctx, snapshotKey(orderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("ledger: snapshot get: %w", err)
	}
	var prev Snapshot
	if err := json.Unmarshal(raw, &prev); err != nil {
		return false, nil, fmt.Errorf("ledger: snapshot decode: %w", err)
	}
	diverged := prev.Subtotal != t.Subtotal.String() ||
		prev.Total != t.Total.String() ||
		prev.Remaining != t.Remaining.String()
	return diverged, &prev, nil
}

// Store overwrites the cached snapshot with the given totals.
func (c *SnapshotCache) Store(ctx context.Context, orderID int64, t Totals) error {
	if c == nil || c.client == nil {
		return nil
	}
	snap := Snapshot{
		Subtotal:   t.Subtotal.String(),
		Total:      t.Total.String(),
		Remaining:  t.Remaining.String(),
		ComputedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ledger: snapshot encode: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(orderID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("ledger: snapshot set: %w", err)
	}
	return nil
}
