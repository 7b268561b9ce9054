// Package containerselector chooses a container (or up to fanout) for a
// solve, honoring an optional pinned chat_url and profile allowlist (spec
// §4.6). Concurrent status() fan-out uses sourcegraph/conc, the library the
// teacher's own go.mod carries for bounded concurrency; rejection reasons
// per candidate are aggregated with go.uber.org/multierr.
package containerselector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/arashi-labs/solveorch/internal/store"
	"github.com/arashi-labs/solveorch/internal/upstream"
)

// Rejection reason codes (spec §4.6).
const (
	ReasonNoEnabledContainers           = "no_enabled_containers"
	ReasonAllBusyOrLocked               = "all_busy_or_locked"
	ReasonChatURLNotRegistered          = "chat_url_not_registered"
	ReasonChatURLContainerUnavailable   = "chat_url_container_unavailable"
	ReasonChatURLContainerBusyOrMismatch = "chat_url_container_busy_or_mismatch"
	ReasonStrictFanoutNotSatisfied      = "strict_fanout_not_satisfied"
)

// NotEnoughContainersError is returned whenever no acceptable container(s)
// can be produced for the request.
type NotEnoughContainersError struct {
	Reason  string
	Details error // aggregated per-candidate rejection reasons, via multierr
}

func (e *NotEnoughContainersError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("containerselector: %s: %v", e.Reason, e.Details)
	}
	return fmt.Sprintf("containerselector: %s", e.Reason)
}

func (e *NotEnoughContainersError) Unwrap() error { return e.Details }

// SelectOptions parameterizes one selection call (spec §4.6, §4.8 step 4).
type SelectOptions struct {
	PromptID          string
	ProfileID         string
	SocksID           *string
	Fanout            int
	AllowedContainers []string
	StrictFanout      bool
	ChatURL           *string
}

// Selector implements the decision procedure of spec §4.6.
type Selector struct {
	pool  *upstream.Pool
	store *store.Store

	mu     sync.Mutex
	cursor int
}

// New returns a Selector over pool and st.
func New(pool *upstream.Pool, st *store.Store) *Selector {
	return &Selector{pool: pool, store: st}
}

func intersect(candidates, allowed []string) []string {
	if len(allowed) == 0 {
		return candidates
	}
	allowSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowSet[a] = true
	}
	var out []string
	for _, c := range candidates {
		if allowSet[c] {
			out = append(out, c)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Select implements spec §4.6's decision procedure.
func (s *Selector) Select(ctx context.Context, opts SelectOptions) ([]string, error) {
	candidates := intersect(s.pool.ListEnabled(), opts.AllowedContainers)
	if len(candidates) == 0 {
		return nil, &NotEnoughContainersError{Reason: ReasonNoEnabledContainers}
	}

	blockedSet, err := s.blockedSet()
	if err != nil {
		return nil, fmt.Errorf("containerselector: list locked containers: %w", err)
	}

	if opts.ChatURL != nil && *opts.ChatURL != "" {
		return s.selectPinned(ctx, *opts.ChatURL, candidates, blockedSet)
	}

	statuses := s.fetchStatuses(ctx, candidates)

	var available []string
	var rejections error
	for _, c := range candidates {
		if blockedSet[c] {
			rejections = multierr.Append(rejections, fmt.Errorf("%s: locked", c))
			continue
		}
		st, ok := statuses[c]
		if !ok || st.err != nil || st.status.IsBusy() {
			reason := "busy"
			if ok && st.err != nil {
				reason = fmt.Sprintf("status error: %v", st.err)
			}
			rejections = multierr.Append(rejections, fmt.Errorf("%s: %s", c, reason))
			continue
		}
		available = append(available, c)
	}

	if len(available) == 0 {
		return nil, &NotEnoughContainersError{Reason: ReasonAllBusyOrLocked, Details: rejections}
	}

	fanout := opts.Fanout
	if fanout <= 0 {
		fanout = 1
	}

	s.mu.Lock()
	cursor := s.cursor
	s.cursor++
	s.mu.Unlock()

	n := len(available)
	offset := cursor % n
	var selected []string
	for i := 0; i < n && len(selected) < fanout; i++ {
		selected = append(selected, available[(offset+i)%n])
	}

	if opts.StrictFanout && len(selected) < fanout {
		return nil, &NotEnoughContainersError{Reason: ReasonStrictFanoutNotSatisfied, Details: rejections}
	}

	return selected, nil
}

func (s *Selector) selectPinned(ctx context.Context, chatURL string, candidates []string, blockedSet map[string]bool) ([]string, error) {
	trimmedURL := strings.TrimSpace(chatURL)
	cs, err := s.store.GetFullChatSessionByURL(trimmedURL)
	if err != nil {
		return nil, &NotEnoughContainersError{Reason: ReasonChatURLNotRegistered, Details: err}
	}
	if !contains(candidates, cs.ContainerID) || blockedSet[cs.ContainerID] {
		return nil, &NotEnoughContainersError{Reason: ReasonChatURLContainerUnavailable}
	}
	t, ok := s.pool.Get(cs.ContainerID)
	if !ok {
		return nil, &NotEnoughContainersError{Reason: ReasonChatURLContainerUnavailable}
	}
	st, err := t.Status(ctx, "")
	if err != nil || st.IsBusy() || strings.TrimSpace(st.PageURL) != trimmedURL {
		return nil, &NotEnoughContainersError{Reason: ReasonChatURLContainerBusyOrMismatch, Details: err}
	}
	return []string{cs.ContainerID}, nil
}

func (s *Selector) blockedSet() (map[string]bool, error) {
	ids, err := s.store.ListLockedContainers(time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

type statusResult struct {
	status upstream.StatusResponse
	err    error
}

// fetchStatuses concurrently polls status() on every candidate (spec §4.6
// step 5); on exception the candidate is marked busy for this pass.
func (s *Selector) fetchStatuses(ctx context.Context, candidates []string) map[string]statusResult {
	results := make(map[string]statusResult, len(candidates))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(8)
	for _, containerID := range candidates {
		containerID := containerID
		p.Go(func() {
			t, ok := s.pool.Get(containerID)
			if !ok {
				mu.Lock()
				results[containerID] = statusResult{err: fmt.Errorf("not registered")}
				mu.Unlock()
				return
			}
			st, err := t.Status(ctx, "")
			mu.Lock()
			results[containerID] = statusResult{status: st, err: err}
			mu.Unlock()
		})
	}
	p.Wait()
	return results
}
