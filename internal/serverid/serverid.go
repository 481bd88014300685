// Package serverid keeps the stable identity of this agent installation.
package serverid

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const Key = "serverId"

type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// Ensure returns the stored server id, minting and persisting a new one when
// none exists or the stored value is not a UUID. Call it once at startup.
func Ensure(ctx context.Context, kv KV) (uuid.UUID, error) {
	raw, ok, err := kv.Get(ctx, Key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("read server id: %w", err)
	}
	if ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id, nil
		}
	}
	id := uuid.New()
	if err := kv.Put(ctx, Key, id.String()); err != nil {
		return uuid.Nil, fmt.Errorf("store server id: %w", err)
	}
	return id, nil
}
