package chatmanager

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

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

func TestExtractChatID(t *testing.T) {
	cases := map[string]string{
		"https://x/c/abc123":        "abc123",
		"https://x/c/abc123?x=1":    "abc123",
		"https://x/c/abc123#frag":   "abc123",
		"https://x/":                "",
		"https://x/c/":              "",
	}
	for url, want := range cases {
		if got := ExtractChatID(url); got != want {
			t.Errorf("ExtractChatID(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestGetOrCreateChatCreatesFreshRow(t *testing.T) {
	s := newTestStore(t)
	m := New(s)
	cs, err := m.GetOrCreateChat(GetOrCreateParams{
		ContainerID: "c1", PromptID: "default", ProfileID: "p1", MaxChatUses: 50, RootURL: "https://x/",
	})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if cs.ChatID != nil {
		t.Fatalf("want nil chat_id on fresh row, got %v", *cs.ChatID)
	}
	if cs.PageURL != "https://x/" {
		t.Fatalf("want root url, got %q", cs.PageURL)
	}
}

// TestReuseBound pins S5: with default_max_chat_uses=2, two solves reuse the
// same row and a third creates a new one.
func TestReuseBound(t *testing.T) {
	s := newTestStore(t)
	m := New(s)

	first, err := m.GetOrCreateChat(GetOrCreateParams{ContainerID: "c1", PromptID: "default", ProfileID: "p1", MaxChatUses: 2, RootURL: "https://x/"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.IncrementChatUse(first.ID, 1, "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	second, err := m.GetOrCreateChat(GetOrCreateParams{ContainerID: "c1", PromptID: "default", ProfileID: "p1", MaxChatUses: 2, RootURL: "https://x/"})
	if err != nil {
		t.Fatalf("reuse: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("want reuse of row %d, got %d", first.ID, second.ID)
	}
	if err := s.IncrementChatUse(second.ID, 1, "2026-01-01T00:00:01Z"); err != nil {
		t.Fatalf("increment 2: %v", err)
	}

	third, err := m.GetOrCreateChat(GetOrCreateParams{ContainerID: "c1", PromptID: "default", ProfileID: "p1", MaxChatUses: 2, RootURL: "https://x/"})
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if third.ID == first.ID {
		t.Fatalf("want a new row once uses_count >= limit, got same id %d", third.ID)
	}
}

func TestEnsureChatLoadedSendsStartPromptAndExtractsChatID(t *testing.T) {
	s := newTestStore(t)
	m := New(s)
	cs, err := m.GetOrCreateChat(GetOrCreateParams{ContainerID: "c1", PromptID: "default", ProfileID: "p1", MaxChatUses: 50, RootURL: "https://x/"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ft := &upstream.FakeTransport{
		AnalyzeTextFn: func(ctx context.Context, req upstream.AnalyzeTextRequest) (upstream.AnalyzeResponse, error) {
			if req.Text != "SYSTEM" {
				t.Fatalf("want start prompt SYSTEM, got %q", req.Text)
			}
			return upstream.AnalyzeResponse{PageURL: "https://x/c/abc123", Text: ""}, nil
		},
	}

	loaded, err := m.EnsureChatLoaded(context.Background(), ft, cs, EnsureLoadedParams{StartPrompt: "SYSTEM"})
	if err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}
	if loaded.ChatID == nil || *loaded.ChatID != "abc123" {
		t.Fatalf("want chat_id=abc123, got %+v", loaded.ChatID)
	}
	if loaded.UsesCount != 1 {
		t.Fatalf("want uses_count=1 after start prompt, got %d", loaded.UsesCount)
	}

	// Already-loaded sessions are a no-op even if called again.
	again, err := m.EnsureChatLoaded(context.Background(), ft, loaded, EnsureLoadedParams{StartPrompt: "SYSTEM"})
	if err != nil {
		t.Fatalf("ensure loaded again: %v", err)
	}
	if again.UsesCount != 1 {
		t.Fatalf("want no-op for already-loaded session, uses_count changed to %d", again.UsesCount)
	}
}

func TestEnsureChatLoadedNoStartPromptIsNoop(t *testing.T) {
	s := newTestStore(t)
	m := New(s)
	cs, _ := m.GetOrCreateChat(GetOrCreateParams{ContainerID: "c1", PromptID: "default", ProfileID: "p1", MaxChatUses: 50, RootURL: "https://x/"})

	ft := &upstream.FakeTransport{AnalyzeTextFn: func(context.Context, upstream.AnalyzeTextRequest) (upstream.AnalyzeResponse, error) {
		t.Fatal("must not call analyze_text when start prompt is empty")
		return upstream.AnalyzeResponse{}, nil
	}}
	got, err := m.EnsureChatLoaded(context.Background(), ft, cs, EnsureLoadedParams{})
	if err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}
	if got.ChatID != nil {
		t.Fatalf("want chat_id still nil, got %v", *got.ChatID)
	}
}

func TestGetOrCreateChatPinnedMismatch(t *testing.T) {
	s := newTestStore(t)
	m := New(s)
	_, err := m.GetOrCreateChat(GetOrCreateParams{ContainerID: "c1", PromptID: "default", ProfileID: "p1", MaxChatUses: 50, RootURL: "https://x/"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	url := "https://x/"
	_, err = m.GetOrCreateChat(GetOrCreateParams{ContainerID: "c2", ChatURL: &url})
	if !errors.Is(err, ErrChatURLContainerMismatch) {
		t.Fatalf("want ErrChatURLContainerMismatch, got %v", err)
	}
}
