// Package leader provides lease-based leader election for singleton
// background tasks (the worker's DLQ sweep) that must run on
// exactly one process at a time.
//
// Generalized from the teacher's SETNX-based AcquireLock/ReleaseLock
// (db/repository/redis.go) into a full compare-and-swap lease: renew and
// release both verify the caller still holds the lease before acting, via
// small Lua scripts run through go-redis's Eval, since a plain DEL/SET
// would let a process whose lease already expired clobber whoever won it
// next.
package leader

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hadijannat/titan-aas/titanerr"
)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Lease represents one process's claim on a role, valid until it is
// renewed or expires.
type Lease struct {
	client     redis.UniversalClient
	key        string
	instanceID string
}

func leaseKey(role string) string {
	return "titan:leader:" + role
}

// Acquire attempts to claim role for instanceID. It returns (nil, nil)
// when another instance already holds the lease.
func Acquire(ctx context.Context, client redis.UniversalClient, role, instanceID string, ttl time.Duration) (*Lease, error) {
	key := leaseKey(role)
	ok, err := client.SetNX(ctx, key, instanceID, ttl).Result()
	if err != nil {
		return nil, titanerr.Wrap(titanerr.EventLogUnavailable, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{client: client, key: key, instanceID: instanceID}, nil
}

// Renew extends the lease's TTL, but only if this instance still holds
// it; a false return means the lease was lost (e.g. to a GC pause past
// ttl) and the caller must stop acting as leader.
func (l *Lease) Renew(ctx context.Context, ttl time.Duration) (bool, error) {
	result, err := renewScript.Run(ctx, l.client, []string{l.key}, l.instanceID, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, titanerr.Wrap(titanerr.EventLogUnavailable, err)
	}
	return result == 1, nil
}

// Release gives up the lease, again only if still held by this instance.
func (l *Lease) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.instanceID).Int64()
	if err != nil {
		return titanerr.Wrap(titanerr.EventLogUnavailable, err)
	}
	return nil
}

// Run repeatedly tries to acquire role and, once leader, invokes fn while
// renewing the lease every renewEvery until fn returns, the lease is
// lost, or ctx is cancelled. In the latter two cases fn's context is
// cancelled and Run waits for fn to return before releasing the lease.
// It is the shape background singleton tasks (the DLQ sweep) drive
// themselves with.
func Run(ctx context.Context, client redis.UniversalClient, role, instanceID string, ttl, renewEvery time.Duration, fn func(ctx context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lease, err := Acquire(ctx, client, role, instanceID, ttl)
		if err != nil {
			return err
		}
		if lease == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(renewEvery):
				continue
			}
		}

		fnCtx, stopFn := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- fn(fnCtx) }()

		ticker := time.NewTicker(renewEvery)
		var runErr error
		fnReturned := false
	renewLoop:
		for {
			select {
			case runErr = <-done:
				fnReturned = true
				break renewLoop
			case <-ticker.C:
				held, err := lease.Renew(ctx, ttl)
				if err != nil || !held {
					runErr = err
					break renewLoop
				}
			case <-ctx.Done():
				runErr = ctx.Err()
				break renewLoop
			}
		}
		ticker.Stop()
		stopFn()
		if !fnReturned {
			<-done
		}
		_ = lease.Release(context.Background())
		return runErr
	}
}
