package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/nudge-engine/pkg/logging"
)

func newTestLock(t *testing.T) (*PatientLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPatientLock(client, 30*time.Second, logging.New("error")), mr
}

func TestPatientLockSerializesSamePatient(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	release, acquired := lock.Acquire(ctx, "patient-1")
	require.True(t, acquired)

	_, second := lock.Acquire(ctx, "patient-1")
	assert.False(t, second)

	release()
	_, third := lock.Acquire(ctx, "patient-1")
	assert.True(t, third)
}

func TestPatientLockDifferentPatientsIndependent(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	_, a := lock.Acquire(ctx, "patient-1")
	_, b := lock.Acquire(ctx, "patient-2")
	assert.True(t, a)
	assert.True(t, b)
}

func TestPatientLockExpiresWithTTL(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	_, acquired := lock.Acquire(ctx, "patient-1")
	require.True(t, acquired)

	mr.FastForward(31 * time.Second)

	_, again := lock.Acquire(ctx, "patient-1")
	assert.True(t, again)
}

func TestPatientLockStaleReleaseDoesNotFreeSuccessor(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	staleRelease, acquired := lock.Acquire(ctx, "patient-1")
	require.True(t, acquired)

	// First holder's lock expires; a second run takes it over.
	mr.FastForward(31 * time.Second)
	_, second := lock.Acquire(ctx, "patient-1")
	require.True(t, second)

	// The expired holder's release must not delete the successor's lock.
	staleRelease()
	_, third := lock.Acquire(ctx, "patient-1")
	assert.False(t, third)
}

func TestPatientLockNilClientFailsOpen(t *testing.T) {
	lock := NewPatientLock(nil, 0, logging.New("error"))
	release, acquired := lock.Acquire(context.Background(), "patient-1")
	assert.True(t, acquired)
	release()
}

func TestPatientLockRedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewPatientLock(client, time.Second, logging.New("error"))
	mr.Close()

	release, acquired := lock.Acquire(context.Background(), "patient-1")
	assert.True(t, acquired)
	release()
}

func TestOrchestratorLockBusyReturnsDuplicate(t *testing.T) {
	lock, _ := newTestLock(t)
	_, acquired := lock.Acquire(context.Background(), "patient-1")
	require.True(t, acquired)

	o := testOrchestrator(Config{Enabled: true}, Deps{Lock: lock})
	result := o.Run(context.Background(), "patient-1", Options{})
	assert.Equal(t, ReasonDuplicate, result.Reason)

	// Another patient is unaffected.
	other := o.Run(context.Background(), "patient-2", Options{})
	assert.True(t, other.Success)
}
