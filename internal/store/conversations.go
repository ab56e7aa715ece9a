package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/skydesk/internal/domain"
)

// Conversations is the two-tier conversation state store: an in-process cache
// in front of a durable ConversationRepository. Reads prefer the cache. Writes
// always land in the cache and are then attempted durably; a durable failure is
// logged and retried later by the maintenance worker.
type Conversations struct {
	durable ConversationRepository
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	state      *domain.ConversationState
	lastAccess time.Time
	version    uint64
	durable    bool
}

// NewConversations creates a conversation store. durable may be nil, in which
// case state lives only in memory.
func NewConversations(durable ConversationRepository, logger *slog.Logger) *Conversations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversations{
		durable: durable,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns a copy of the stored state. Durable read failures and malformed
// records are logged and reported as not found.
func (c *Conversations) Get(ctx context.Context, conversationID string) (*domain.ConversationState, bool) {
	c.mu.Lock()
	if e, ok := c.entries[conversationID]; ok {
		e.lastAccess = c.now()
		state := e.state.Clone()
		c.mu.Unlock()
		return state, true
	}
	c.mu.Unlock()

	if c.durable == nil {
		return nil, false
	}

	state, err := c.durable.LoadConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			c.logger.Warn("Discarding malformed conversation record",
				"conversation_id", conversationID, "error", err)
		} else {
			c.logger.Warn("Durable conversation read failed",
				"conversation_id", conversationID, "error", err)
		}
		return nil, false
	}
	if state == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent Save may have populated the entry while we were reading.
	if e, ok := c.entries[conversationID]; ok {
		e.lastAccess = c.now()
		return e.state.Clone(), true
	}
	c.entries[conversationID] = &cacheEntry{
		state:      state.Clone(),
		lastAccess: c.now(),
		durable:    true,
	}
	return state, true
}

// Save stores a copy of state in the cache and attempts the durable write.
// It reports whether the durable write succeeded.
func (c *Conversations) Save(ctx context.Context, state *domain.ConversationState) bool {
	snapshot := state.Clone()

	c.mu.Lock()
	e, ok := c.entries[snapshot.ConversationID]
	if !ok {
		e = &cacheEntry{}
		c.entries[snapshot.ConversationID] = e
	}
	e.state = snapshot
	e.lastAccess = c.now()
	e.version++
	e.durable = false
	version := e.version
	c.mu.Unlock()

	return c.persist(ctx, snapshot, version)
}

func (c *Conversations) persist(ctx context.Context, snapshot *domain.ConversationState, version uint64) bool {
	if c.durable == nil {
		return false
	}

	if err := c.durable.UpsertConversation(ctx, snapshot); err != nil {
		c.logger.Warn("Durable conversation write failed, state kept in cache",
			"conversation_id", snapshot.ConversationID, "error", err)
		return false
	}

	c.mu.Lock()
	if e, ok := c.entries[snapshot.ConversationID]; ok && e.version == version {
		e.durable = true
	}
	c.mu.Unlock()
	return true
}

// Len returns the number of cached conversations.
func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SweepStats summarizes one maintenance pass.
type SweepStats struct {
	Flushed int
	Failed  int
	Evicted int
}

// Sweep retries durable writes for entries whose last save failed, then evicts
// durably persisted entries idle for longer than idle.
func (c *Conversations) Sweep(ctx context.Context, idle time.Duration) SweepStats {
	type pending struct {
		state   *domain.ConversationState
		version uint64
	}

	var stats SweepStats
	var dirty []pending

	c.mu.Lock()
	for _, e := range c.entries {
		if !e.durable {
			dirty = append(dirty, pending{state: e.state.Clone(), version: e.version})
		}
	}
	c.mu.Unlock()

	for _, p := range dirty {
		if ctx.Err() != nil {
			break
		}
		if c.persist(ctx, p.state, p.version) {
			stats.Flushed++
		} else {
			stats.Failed++
		}
	}

	cutoff := c.now().Add(-idle)
	c.mu.Lock()
	for id, e := range c.entries {
		if e.durable && e.lastAccess.Before(cutoff) {
			delete(c.entries, id)
			stats.Evicted++
		}
	}
	c.mu.Unlock()

	return stats
}

// StartMaintenanceWorker runs a background goroutine that periodically sweeps
// the conversation cache until ctx is cancelled. The returned channel is
// closed once the worker has exited.
func StartMaintenanceWorker(ctx context.Context, conversations *Conversations, interval, idle time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		conversations.logger.Info("Conversation cache worker started", "interval", interval, "idle_ttl", idle)

		for {
			select {
			case <-ticker.C:
				stats := conversations.Sweep(ctx, idle)
				if stats.Flushed > 0 || stats.Failed > 0 || stats.Evicted > 0 {
					conversations.logger.Info("Conversation cache sweep completed",
						"flushed", stats.Flushed,
						"failed", stats.Failed,
						"evicted", stats.Evicted)
				}
			case <-ctx.Done():
				conversations.logger.Info("Conversation cache worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}
