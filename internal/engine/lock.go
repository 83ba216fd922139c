package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// DefaultLockTTL bounds how long a crashed run can hold its patient lock.
const DefaultLockTTL = 30 * time.Second

// PatientLock serializes pipeline runs per patient with a short-lived Redis
// lock, closing the read-then-decide race between the rate-limit and dedup
// checks. It fails open: if Redis is down or unconfigured, runs proceed
// unserialized, which only re-opens the accepted race.
type PatientLock struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewPatientLock creates a lock manager. A nil client disables locking.
func NewPatientLock(client *redis.Client, ttl time.Duration, logger *logging.Logger) *PatientLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientLock{redis: client, ttl: ttl, logger: logger}
}

// Acquire takes the per-patient lock. It returns false when another run
// holds it. The release func only deletes the lock if this run still owns
// it, so a run that outlives the TTL cannot release a successor's lock.
func (l *PatientLock) Acquire(ctx context.Context, patientID string) (release func(), acquired bool) {
	noop := func() {}
	if l == nil || l.redis == nil {
		return noop, true
	}

	key := fmt.Sprintf("nudge:run:%s", patientID)
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		l.logger.Warn("patient lock unavailable, proceeding unlocked", "patient_id", patientID, "error", err)
		return noop, true
	}
	if !ok {
		return noop, false
	}

	return func() {
		val, err := l.redis.Get(context.Background(), key).Result()
		if err == nil && val == token {
			if err := l.redis.Del(context.Background(), key).Err(); err != nil {
				l.logger.Warn("patient lock release failed", "patient_id", patientID, "error", err)
			}
		}
	}, true
}
