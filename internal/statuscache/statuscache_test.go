package statuscache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arashi-labs/solveorch/internal/store"
	"github.com/arashi-labs/solveorch/internal/upstream"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "statuscache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSnapshotBeforeFirstPollIsZeroValue(t *testing.T) {
	c := New(newTestStore(t), upstream.NewPool(), time.Second)
	snap := c.Snapshot()
	if snap.Containers != nil {
		t.Fatalf("want nil containers before any poll, got %+v", snap.Containers)
	}
}

func TestPollBuildsEnrichedSnapshot(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)
	if err := st.UpsertProfile(&store.Profile{ProfileID: "p1", ProfileValue: "v1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if _, err := st.CreateFullChatSession(&store.ChatSession{
		ContainerID: "c1", PromptID: "default", ProfileID: "p1", PageURL: "https://x/c/abc",
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed chat session: %v", err)
	}

	pool := upstream.NewPool()
	pool.Register("c1", &upstream.FakeTransport{
		StatusFn: func(context.Context, string) (upstream.StatusResponse, error) {
			return upstream.StatusResponse{Status: "ok", PageURL: "https://x/c/abc"}, nil
		},
	})

	c := New(st, pool, time.Hour)
	c.poll(context.Background())

	snap := c.Snapshot()
	got, ok := snap.Containers["c1"]
	if !ok {
		t.Fatalf("want c1 in snapshot, got %+v", snap.Containers)
	}
	if got.ProfileID != "p1" || got.IsProfileBlocked || got.IsGuestChat {
		t.Fatalf("unexpected enrichment: %+v", got)
	}
}

func TestPollMarksGuestBlockedProfile(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)
	if err := st.UpsertProfile(&store.Profile{ProfileID: "p1", ProfileValue: "v1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	id, err := st.CreateFullChatSession(&store.ChatSession{
		ContainerID: "c1", PromptID: "default", ProfileID: "p1", PageURL: "https://x/c/abc",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed chat session: %v", err)
	}
	guest := store.TagGuest
	if err := st.UpdateFullChatSessionByID(id, &guest, nil, &guest, nil, now); err != nil {
		t.Fatalf("mark guest: %v", err)
	}

	pool := upstream.NewPool()
	pool.Register("c1", &upstream.FakeTransport{
		StatusFn: func(context.Context, string) (upstream.StatusResponse, error) {
			return upstream.StatusResponse{Status: "ok", PageURL: "https://x/c/abc"}, nil
		},
	})

	c := New(st, pool, time.Hour)
	c.poll(context.Background())

	snap := c.Snapshot()
	if snap.BlockedProfileCount != 1 {
		t.Fatalf("want 1 blocked profile, got %d (%v)", snap.BlockedProfileCount, snap.BlockedProfileIDs)
	}
	got := snap.Containers["c1"]
	if !got.IsProfileBlocked || !got.IsGuestChat {
		t.Fatalf("want profile blocked + guest chat flags set, got %+v", got)
	}
}

func TestPollOneReportsTransportError(t *testing.T) {
	st := newTestStore(t)
	pool := upstream.NewPool()
	pool.Register("c1", &upstream.FakeTransport{
		StatusFn: func(context.Context, string) (upstream.StatusResponse, error) {
			return upstream.StatusResponse{}, &upstream.TransportError{ContainerID: "c1", Err: context.DeadlineExceeded}
		},
	})

	c := New(st, pool, time.Hour)
	c.poll(context.Background())

	got := c.Snapshot().Containers["c1"]
	if got.Status != "error" || got.Error == "" {
		t.Fatalf("want error status with message, got %+v", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	c := New(newTestStore(t), upstream.NewPool(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("want nil error on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
