package containerselector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/arashi-labs/solveorch/internal/store"
	"github.com/arashi-labs/solveorch/internal/upstream"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "orch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func statusFn(resp upstream.StatusResponse, err error) func(context.Context, string) (upstream.StatusResponse, error) {
	return func(context.Context, string) (upstream.StatusResponse, error) { return resp, err }
}

func TestSelectNoEnabledContainers(t *testing.T) {
	p := upstream.NewPool()
	sel := New(p, newTestStore(t))
	_, err := sel.Select(context.Background(), SelectOptions{})
	var nec *NotEnoughContainersError
	if !errors.As(err, &nec) || nec.Reason != ReasonNoEnabledContainers {
		t.Fatalf("want no_enabled_containers, got %v", err)
	}
}

func TestSelectFiltersBusyAndRoundRobins(t *testing.T) {
	p := upstream.NewPool()
	p.Register("c1", &upstream.FakeTransport{StatusFn: statusFn(upstream.StatusResponse{Status: "ok", Busy: true}, nil)})
	p.Register("c2", &upstream.FakeTransport{StatusFn: statusFn(upstream.StatusResponse{Status: "ok"}, nil)})
	p.Register("c3", &upstream.FakeTransport{StatusFn: statusFn(upstream.StatusResponse{Status: "ok"}, nil)})
	sel := New(p, newTestStore(t))

	first, err := sel.Select(context.Background(), SelectOptions{Fanout: 1})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(first) != 1 || first[0] == "c1" {
		t.Fatalf("want one non-busy container, got %v", first)
	}

	second, err := sel.Select(context.Background(), SelectOptions{Fanout: 1})
	if err != nil {
		t.Fatalf("select 2: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("want one container, got %v", second)
	}
	if second[0] == first[0] {
		t.Fatalf("want round-robin cursor to rotate selection, got same container twice: %v", second)
	}
}

func TestSelectAllBusyReturnsNotEnoughContainers(t *testing.T) {
	p := upstream.NewPool()
	p.Register("c1", &upstream.FakeTransport{StatusFn: statusFn(upstream.StatusResponse{Busy: true}, nil)})
	sel := New(p, newTestStore(t))
	_, err := sel.Select(context.Background(), SelectOptions{Fanout: 1})
	var nec *NotEnoughContainersError
	if !errors.As(err, &nec) || nec.Reason != ReasonAllBusyOrLocked {
		t.Fatalf("want all_busy_or_locked, got %v", err)
	}
}

func TestSelectPinnedChatURL(t *testing.T) {
	p := upstream.NewPool()
	p.Register("c1", &upstream.FakeTransport{StatusFn: statusFn(upstream.StatusResponse{Status: "ok", PageURL: "https://x/c/abc123"}, nil)})
	st := newTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := st.CreateFullChatSession(&store.ChatSession{
		ContainerID: "c1", PromptID: "default", ProfileID: "p1", PageURL: "https://x/c/abc123",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed chat session: %v", err)
	}

	sel := New(p, st)
	url := "https://x/c/abc123"
	got, err := sel.Select(context.Background(), SelectOptions{ChatURL: &url})
	if err != nil {
		t.Fatalf("select pinned: %v", err)
	}
	if len(got) != 1 || got[0] != "c1" {
		t.Fatalf("want [c1], got %v", got)
	}
}

func TestSelectPinnedChatURLNotRegistered(t *testing.T) {
	p := upstream.NewPool()
	p.Register("c1", &upstream.FakeTransport{StatusFn: statusFn(upstream.StatusResponse{}, nil)})
	sel := New(p, newTestStore(t))
	url := "https://x/c/ghost"
	_, err := sel.Select(context.Background(), SelectOptions{ChatURL: &url})
	var nec *NotEnoughContainersError
	if !errors.As(err, &nec) || nec.Reason != ReasonChatURLNotRegistered {
		t.Fatalf("want chat_url_not_registered, got %v", err)
	}
}
