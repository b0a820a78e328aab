package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	valkey "github.com/valkey-io/valkey-go"
)

const (
	defaultLeaderLockTTL     = 30 * time.Second
	defaultLeaderRenewPeriod = 10 * time.Second
	leaderLockKey            = "leader:reminders"
)

// LeaderElection elects a single reminder sender when the scheduler runs on
// more than one instance; without it every replica would email every
// volunteer. The lock lives in Valkey under a TTL and is renewed while held.
type LeaderElection struct {
	client   valkey.Client
	prefix   string
	identity string
	logger   zerolog.Logger

	lockTTL     time.Duration
	renewPeriod time.Duration

	mu       sync.RWMutex
	isLeader bool
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
}

// LeaderElectionConfig holds configuration for leader election.
type LeaderElectionConfig struct {
	// LockTTL is how long the leader lock is valid.
	LockTTL time.Duration
	// RenewPeriod is how often to renew the lock; must be shorter than LockTTL.
	RenewPeriod time.Duration
	// Identity uniquely identifies this instance (defaults to hostname+uuid).
	Identity string
}

// NewLeaderElection creates a leader election instance; Start begins campaigning.
func NewLeaderElection(client valkey.Client, prefix string, cfg LeaderElectionConfig, logger zerolog.Logger) *LeaderElection {
	if cfg.LockTTL == 0 {
		cfg.LockTTL = defaultLeaderLockTTL
	}
	if cfg.RenewPeriod == 0 {
		cfg.RenewPeriod = defaultLeaderRenewPeriod
	}
	if cfg.Identity == "" {
		hostname, _ := os.Hostname()
		cfg.Identity = fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
	}
	return &LeaderElection{
		client:      client,
		prefix:      prefix,
		identity:    cfg.Identity,
		logger:      logger,
		lockTTL:     cfg.LockTTL,
		renewPeriod: cfg.RenewPeriod,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (le *LeaderElection) key() string { return le.prefix + leaderLockKey }

// IsLeader reports whether this instance currently holds the lock.
func (le *LeaderElection) IsLeader() bool {
	le.mu.RLock()
	defer le.mu.RUnlock()
	return le.isLeader
}

// Identity returns this instance's identity string.
func (le *LeaderElection) Identity() string { return le.identity }

// CurrentLeader returns the identity of whoever holds the lock, or "" if none.
func (le *LeaderElection) CurrentLeader(ctx context.Context) (string, error) {
	res := le.client.Do(ctx, le.client.B().Get().Key(le.key()).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return "", nil
		}
		return "", res.Error()
	}
	return res.ToString()
}

func (le *LeaderElection) tryAcquireLock(ctx context.Context) (bool, error) {
	// SET NX EX: atomic acquire with TTL.
	res := le.client.Do(ctx,
		le.client.B().Set().Key(le.key()).Value(le.identity).Nx().Ex(le.lockTTL).Build())
	if res.Error() != nil {
		if valkey.IsValkeyNil(res.Error()) {
			return false, nil
		}
		return false, res.Error()
	}
	result, err := res.ToString()
	if err != nil {
		return false, nil
	}
	return result == "OK", nil
}

func (le *LeaderElection) renewLock(ctx context.Context) (bool, error) {
	// Atomic check-and-renew: only the holder may extend the TTL.
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	ttlSecs := int64(le.lockTTL.Seconds())
	res := le.client.Do(ctx,
		le.client.B().Eval().Script(script).Numkeys(1).Key(le.key()).Arg(le.identity).Arg(fmt.Sprintf("%d", ttlSecs)).Build())
	if res.Error() != nil {
		return false, res.Error()
	}
	renewed, err := res.ToInt64()
	if err != nil {
		return false, err
	}
	return renewed == 1, nil
}

func (le *LeaderElection) releaseLock(ctx context.Context) error {
	// Atomic check-and-delete: never delete a lock another instance re-acquired.
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	res := le.client.Do(ctx,
		le.client.B().Eval().Script(script).Numkeys(1).Key(le.key()).Arg(le.identity).Build())
	return res.Error()
}

// Start begins the election loop in a goroutine.
func (le *LeaderElection) Start(ctx context.Context) {
	le.mu.Lock()
	if le.started {
		le.mu.Unlock()
		return
	}
	le.started = true
	le.mu.Unlock()
	go le.run(ctx)
}

func (le *LeaderElection) run(ctx context.Context) {
	defer close(le.done)
	ticker := time.NewTicker(le.renewPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-le.stopChan:
			le.relinquish()
			return
		case <-ctx.Done():
			le.relinquish()
			return
		case <-ticker.C:
			le.checkLeadership(ctx)
		}
	}
}

func (le *LeaderElection) checkLeadership(ctx context.Context) {
	le.mu.Lock()
	wasLeader := le.isLeader
	le.mu.Unlock()

	if wasLeader {
		renewed, err := le.renewLock(ctx)
		if err != nil {
			le.logger.Warn().Err(err).Msg("leader election: renew failed")
			le.relinquish()
			return
		}
		if !renewed {
			le.logger.Info().Str("identity", le.identity).Msg("leader election: lost leadership")
			le.relinquish()
		}
		return
	}

	acquired, err := le.tryAcquireLock(ctx)
	if err != nil {
		le.logger.Warn().Err(err).Msg("leader election: acquire failed")
		return
	}
	if acquired {
		le.logger.Info().Str("identity", le.identity).Msg("leader election: became leader")
		le.mu.Lock()
		le.isLeader = true
		le.mu.Unlock()
	}
}

func (le *LeaderElection) relinquish() {
	le.mu.Lock()
	wasLeader := le.isLeader
	le.isLeader = false
	le.mu.Unlock()
	if wasLeader {
		// Relinquish runs on shutdown after the run context is cancelled, so
		// release with a fresh one; otherwise the DEL never reaches Valkey and
		// the next leader waits out the full lock TTL.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := le.releaseLock(ctx); err != nil {
			le.logger.Warn().Err(err).Msg("leader election: release failed")
		}
	}
}

// Stop halts the election loop and releases the lock if held. The release
// completes before Stop returns, so callers can close the client right after.
func (le *LeaderElection) Stop() {
	le.mu.Lock()
	if le.stopped {
		le.mu.Unlock()
		return
	}
	le.stopped = true
	started := le.started
	le.mu.Unlock()
	close(le.stopChan)
	le.relinquish()
	if started {
		<-le.done
	}
}
