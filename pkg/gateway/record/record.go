// Package record keeps a short-lived record of the last reconciled state
// per room, so operators and the settings endpoint can inspect what the
// portal most recently pushed without round-tripping to the room service.
package record

import (
	"context"
	"errors"
	"time"

	"github.com/owui-labs/voicegate/pkg/core/settings"
)

// ErrNotFound is returned by Get when no record exists for the room.
var ErrNotFound = errors.New("record: not found")

// Record is the portal's view of a room after its last reconciliation.
type Record struct {
	Room      string            `json:"room"`
	UserID    string            `json:"user_id"`
	Metadata  string            `json:"metadata"`
	Settings  settings.Settings `json:"settings"`
	Restarted bool              `json:"restarted"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, room string) (Record, error)
	Close() error
}

// Open builds a store from the configured Redis URL. An empty URL selects
// the in-process store, which is fine for a single portal instance.
func Open(redisURL string, ttl time.Duration) (Store, error) {
	if redisURL == "" {
		return NewMemoryStore(ttl), nil
	}
	return NewRedisStore(redisURL, ttl)
}
