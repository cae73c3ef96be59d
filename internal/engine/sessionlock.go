package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrSessionBusy is returned when the per-session lock could not be acquired
// within the acquire timeout.
var ErrSessionBusy = errors.New("engine: session is busy, lock acquire timed out")

const (
	defaultLockStripes = 256
	lockAcquireTimeout = 30 * time.Second
)

// sessionLocks serializes turns per session through a bounded pool of striped
// binary semaphores. Two sessions hashing to the same stripe share a lock;
// that costs only throughput, never correctness.
type sessionLocks struct {
	stripes []*semaphore.Weighted
}

func newSessionLocks(n int) *sessionLocks {
	if n <= 0 {
		n = defaultLockStripes
	}
	stripes := make([]*semaphore.Weighted, n)
	for i := range stripes {
		stripes[i] = semaphore.NewWeighted(1)
	}
	return &sessionLocks{stripes: stripes}
}

// acquire takes the stripe lock for sessionID, waiting at most the acquire
// timeout. The returned release function must be called exactly once.
func (l *sessionLocks) acquire(ctx context.Context, sessionID int64) (release func(), err error) {
	sem := l.stripes[stripeFor(sessionID, len(l.stripes))]

	acquireCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	if err := sem.Acquire(acquireCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrSessionBusy
		}
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

func stripeFor(sessionID int64, n int) int {
	h := fnv.New32a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sessionID >> (8 * i))
	}
	h.Write(buf[:])
	return int(h.Sum32() % uint32(n))
}
