package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SMSCodeStore keeps the hash of the latest one-time SMS code per phone
type SMSCodeStore interface {
	// Save replaces any outstanding code for phone; it expires after ttl.
	Save(ctx context.Context, phone, codeHash string, ttl time.Duration) error
	// Consume deletes the stored code iff it equals codeHash and reports whether it did.
	Consume(ctx context.Context, phone, codeHash string) (bool, error)
}

// consumeScript compares and deletes in one step, so a code can be used at most once
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisSMSCodeStore struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisSMSCodeStore creates an SMSCodeStore on top of a Redis client
func NewRedisSMSCodeStore(rdb redis.Cmdable) SMSCodeStore {
	return &redisSMSCodeStore{rdb: rdb, prefix: "sms:code:"}
}

func (s *redisSMSCodeStore) key(phone string) string {
	return s.prefix + phone
}

func (s *redisSMSCodeStore) Save(ctx context.Context, phone, codeHash string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(phone), codeHash, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store sms code: %w", err)
	}
	return nil
}

func (s *redisSMSCodeStore) Consume(ctx context.Context, phone, codeHash string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{s.key(phone)}, codeHash).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to consume sms code: %w", err)
	}
	return n == 1, nil
}
