package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyDump is one Redis key captured by [Store.Dump], carrying enough type
// information to reconstruct it with [Store.Restore].
type KeyDump struct {
	Key string `json:"key"`
	// Kind is "string", "list", or "hash" — the three Redis types memstore
	// actually uses (spec §4.10 Memory backup: "type-specific dump").
	Kind string `json:"kind"`
	// TTL is the key's remaining time-to-live, or 0 if it has none.
	TTL time.Duration `json:"ttl"`

	StringValue string            `json:"string_value,omitempty"`
	ListValue   []string          `json:"list_value,omitempty"`
	HashValue   map[string]string `json:"hash_value,omitempty"`
}

// dumpScanBatch is the SCAN cursor batch size.
const dumpScanBatch = 200

// Dump walks every key in the store via SCAN and captures its type, value,
// and remaining TTL, for the Backup Service's Memory snapshot (spec §4.10).
func (s *Store) Dump(ctx context.Context) ([]KeyDump, error) {
	var (
		dumps  []KeyDump
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, "", dumpScanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("memstore: scan: %w", err)
		}
		for _, key := range keys {
			dump, err := s.dumpKey(ctx, key)
			if err != nil {
				return nil, err
			}
			dumps = append(dumps, dump)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return dumps, nil
}

func (s *Store) dumpKey(ctx context.Context, key string) (KeyDump, error) {
	kind, err := s.rdb.Type(ctx, key).Result()
	if err != nil {
		return KeyDump{}, fmt.Errorf("memstore: type %q: %w", key, err)
	}
	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return KeyDump{}, fmt.Errorf("memstore: ttl %q: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0 // no expiry, or key vanished mid-scan; either way nothing to restore.
	}

	dump := KeyDump{Key: key, Kind: kind, TTL: ttl}
	switch kind {
	case "string":
		v, err := s.rdb.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return KeyDump{}, fmt.Errorf("memstore: get %q: %w", key, err)
		}
		dump.StringValue = v
	case "list":
		v, err := s.rdb.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return KeyDump{}, fmt.Errorf("memstore: lrange %q: %w", key, err)
		}
		dump.ListValue = v
	case "hash":
		v, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return KeyDump{}, fmt.Errorf("memstore: hgetall %q: %w", key, err)
		}
		dump.HashValue = v
	}
	return dump, nil
}

// Restore re-applies every dump with SET/RPUSH/HSET, re-establishing each
// key's TTL afterward. Restoring is idempotent: re-running it over the same
// dumps leaves the store in the same state (SET overwrites, RPUSH onto a
// pre-cleared list, HSET overwrites field-by-field).
func (s *Store) Restore(ctx context.Context, dumps []KeyDump) error {
	for _, d := range dumps {
		switch d.Kind {
		case "string":
			if err := s.rdb.Set(ctx, d.Key, d.StringValue, 0).Err(); err != nil {
				return fmt.Errorf("memstore: restore string %q: %w", d.Key, err)
			}
		case "list":
			pipe := s.rdb.TxPipeline()
			pipe.Del(ctx, d.Key)
			if len(d.ListValue) > 0 {
				items := make([]any, len(d.ListValue))
				for i, v := range d.ListValue {
					items[i] = v
				}
				pipe.RPush(ctx, d.Key, items...)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("memstore: restore list %q: %w", d.Key, err)
			}
		case "hash":
			if len(d.HashValue) == 0 {
				continue
			}
			fields := make(map[string]any, len(d.HashValue))
			for k, v := range d.HashValue {
				fields[k] = v
			}
			if err := s.rdb.HSet(ctx, d.Key, fields).Err(); err != nil {
				return fmt.Errorf("memstore: restore hash %q: %w", d.Key, err)
			}
		default:
			continue
		}
		if d.TTL > 0 {
			if err := s.rdb.Expire(ctx, d.Key, d.TTL).Err(); err != nil {
				return fmt.Errorf("memstore: restore ttl %q: %w", d.Key, err)
			}
		}
	}
	return nil
}
