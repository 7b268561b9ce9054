// Package statuscache is a background poller caching per-container status so
// GET /v1/status/all never blocks on a live upstream call (supplemented from
// original_source/status_service.py's build_status_all, not present in the
// distilled spec). Grounded on the teacher's internal/session/manager.go Run
// ticker loop.
package statuscache

import (
	"context"
	"sync"
	"time"

	"github.com/arashi-labs/solveorch/internal/store"
	"github.com/arashi-labs/solveorch/internal/upstream"
)

// ContainerStatus is the enriched per-container snapshot cached by a Cache.
type ContainerStatus struct {
	ContainerID     string `json:"container_id"`
	Status          string `json:"status"`
	Busy            bool   `json:"busy"`
	PageURL         string `json:"page_url,omitempty"`
	Error           string `json:"error,omitempty"`
	ProfileID       string `json:"profile_id,omitempty"`
	IsProfileBlocked bool  `json:"is_profile_blocked"`
	IsGuestChat     bool   `json:"is_guest_chat"`
	IsArchiveChat   bool   `json:"is_archive_chat"`
	PolledAt        string `json:"polled_at"`
}

// Snapshot is the full GET /v1/status/all payload.
type Snapshot struct {
	BlockedProfileCount int                         `json:"blocked_profile_count"`
	BlockedProfileIDs   []string                    `json:"blocked_profile_ids"`
	Containers          map[string]ContainerStatus `json:"containers"`
	PolledAt            string                      `json:"polled_at"`
}

// Cache polls every enabled container on an interval and serves the last
// snapshot to readers without blocking on upstream I/O.
type Cache struct {
	store    *store.Store
	pool     *upstream.Pool
	interval time.Duration

	mu   sync.RWMutex
	last Snapshot
}

// New returns a Cache that polls every interval.
func New(st *store.Store, pool *upstream.Pool, interval time.Duration) *Cache {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Cache{store: st, pool: pool, interval: interval}
}

// Snapshot returns the most recently polled status, or a zero-value Snapshot
// before the first poll completes.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Run polls immediately, then on every tick, until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) error {
	c.poll(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Cache) poll(ctx context.Context) {
	blockedIDs, err := c.store.ListGuestBlockedProfileIDs()
	if err != nil {
		blockedIDs = nil
	}
	blocked := make(map[string]bool, len(blockedIDs))
	for _, id := range blockedIDs {
		blocked[id] = true
	}

	now := time.Now().UTC().Format(time.RFC3339)
	containers := make(map[string]ContainerStatus)
	for _, containerID := range c.pool.ListEnabled() {
		containers[containerID] = c.pollOne(ctx, containerID, blocked, now)
	}

	c.mu.Lock()
	c.last = Snapshot{
		BlockedProfileCount: len(blockedIDs),
		BlockedProfileIDs:   blockedIDs,
		Containers:          containers,
		PolledAt:            now,
	}
	c.mu.Unlock()
}

func (c *Cache) pollOne(ctx context.Context, containerID string, blocked map[string]bool, now string) ContainerStatus {
	transport, ok := c.pool.Get(containerID)
	if !ok {
		return ContainerStatus{ContainerID: containerID, Status: "error", Error: "not registered", PolledAt: now}
	}

	st, err := transport.Status(ctx, "")
	if err != nil {
		return ContainerStatus{ContainerID: containerID, Status: "error", Error: err.Error(), PolledAt: now}
	}

	cs := ContainerStatus{
		ContainerID: containerID,
		Status:      st.Status,
		Busy:        st.IsBusy(),
		PageURL:     st.PageURL,
		PolledAt:    now,
	}

	if st.PageURL == "" {
		return cs
	}
	sess, err := c.store.GetFullChatSessionByURL(st.PageURL)
	if err != nil || sess.ContainerID != containerID {
		return cs
	}

	cs.ProfileID = sess.ProfileID
	cs.IsProfileBlocked = blocked[sess.ProfileID]
	cs.IsGuestChat = sess.IsGuest()
	cs.IsArchiveChat = sess.Tag != nil && *sess.Tag == store.TagArchive
	return cs
}
