package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares policy entries across engine processes. Entries are
// JSON snapshots; linearization per key is provided by a Lua
// compare-and-swap so unrelated keys never contend
type RedisStore struct {
	client *redis.Client
	prefix string
}

// casScript swaps the value only when the current entry matches the
// caller's snapshot. An empty ARGV[1] means "create only if absent"
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if ARGV[1] == '' then
  if cur then return 0 end
  redis.call('SET', KEYS[1], ARGV[2])
  return 1
end
if cur == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[2])
  return 1
end
return 0
`)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "flowscript"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*State, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("policy get failed: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("policy entry corrupt: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) CompareAndSwap(
	ctx context.Context, key Key, expected, next *State,
) (bool, error) {
	var expectedJSON []byte
	if expected != nil {
		var err error
		expectedJSON, err = json.Marshal(expected)
		if err != nil {
			return false, err
		}
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return false, err
	}

	res, err := casScript.Run(ctx, s.client,
		[]string{s.redisKey(key)},
		string(expectedJSON), string(nextJSON)).Int()
	if err != nil {
		return false, fmt.Errorf("policy swap failed: %w", err)
	}
	return res == 1, nil
}

func (s *RedisStore) redisKey(key Key) string {
	return fmt.Sprintf("%s:policy:%s:%s", s.prefix, key.Flow, key.Node)
}
