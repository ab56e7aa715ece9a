package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// LockMode selects what happens when a conversation already has a turn in flight.
type LockMode string

const (
	// LockQueue waits for the in-flight turn to finish.
	LockQueue LockMode = "queue"
	// LockReject fails fast with ErrTurnInProgress.
	LockReject LockMode = "reject"
)

// ParseLockMode validates a configured mode.
func ParseLockMode(s string) (LockMode, error) {
	switch m := LockMode(strings.ToLower(strings.TrimSpace(s))); m {
	case LockQueue, LockReject:
		return m, nil
	case "":
		return LockQueue, nil
	default:
		return "", fmt.Errorf("unknown turn lock mode %q", s)
	}
}

// turnLocks serializes turns per conversation id. Each lock is a one-slot
// channel so waiters can give up on context cancellation.
type turnLocks struct {
	mode    LockMode
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*turnLock
}

type turnLock struct {
	slot    chan struct{}
	holders int
}

func newTurnLocks(mode LockMode, timeout time.Duration) *turnLocks {
	return &turnLocks{mode: mode, timeout: timeout, locks: make(map[string]*turnLock)}
}

// acquire takes the lock for conversationID and returns its release func.
func (l *turnLocks) acquire(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[conversationID]
	if !ok {
		lk = &turnLock{slot: make(chan struct{}, 1)}
		l.locks[conversationID] = lk
	}
	lk.holders++
	l.mu.Unlock()

	release := func() {
		<-lk.slot
		l.drop(conversationID, lk)
	}

	if l.mode == LockReject {
		select {
		case lk.slot <- struct{}{}:
			return release, nil
		default:
			l.drop(conversationID, lk)
			return nil, ErrTurnInProgress
		}
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	select {
	case lk.slot <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		l.drop(conversationID, lk)
		return nil, fmt.Errorf("wait for turn lock: %w: %w", ErrTurnInProgress, ctx.Err())
	}
}

func (l *turnLocks) drop(conversationID string, lk *turnLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.holders--
	if lk.holders == 0 {
		delete(l.locks, conversationID)
	}
}

func (l *turnLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
