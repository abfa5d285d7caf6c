package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// unlockScript releases a lock only when the caller still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry forward only for the current owner.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Mutex is a best-effort distributed lock. The worker uses it to keep
// the lease reaper and the escalation sweep on a single instance; the
// database lease remains the correctness guarantee.
type Mutex struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
	logger logging.Logger
}

// NewMutex builds a named lock with a fresh owner token.
func NewMutex(client *Client, name string, ttl time.Duration, logger logging.Logger) *Mutex {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Mutex{
		client: client,
		key:    client.Key("lock", name),
		token:  uuid.NewString(),
		ttl:    ttl,
		logger: logger.Named("lock"),
	}
}

// TryLock attempts to acquire the lock without blocking.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.Raw().SetNX(ctx, m.key, m.token, m.ttl).Result()
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeCacheError, "lock acquisition failed")
	}
	return ok, nil
}

// Extend refreshes the TTL while the caller still holds the lock.
func (m *Mutex) Extend(ctx context.Context) (bool, error) {
	res, err := extendScript.Run(ctx, m.client.Raw(), []string{m.key}, m.token, m.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeCacheError, "lock extension failed")
	}
	return res == 1, nil
}

// Unlock releases the lock if still held. Releasing a lock lost to
// expiry is not an error.
func (m *Mutex) Unlock(ctx context.Context) error {
	if _, err := unlockScript.Run(ctx, m.client.Raw(), []string{m.key}, m.token).Int64(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "lock release failed")
	}
	return nil
}
