package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetJSON decodes the value at key into dst. It returns ErrMiss when the key
// is absent or holds a value that no longer decodes.
func GetJSON(ctx context.Context, kv KV, key string, dst interface{}) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return ErrMiss
	}
	return nil
}

func SetJSON(ctx context.Context, kv KV, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(data), ttl); err != nil {
		return fmt.Errorf("set cache %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func DeletePrefix(ctx context.Context, kv KV, prefix string) error {
	keys, err := kv.ScanKeys(ctx, prefix+"*")
	if err != nil {
		return fmt.Errorf("scan cache %s*: %w", prefix, err)
	}
	if err := kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("delete cache %s*: %w", prefix, err)
	}
	return nil
}
