package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orch.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func TestUpsertSocksIdempotent(t *testing.T) {
	s := newTestStore(t)
	now := nowISO()
	if err := s.UpsertSocks(&Socks{SocksID: "sx1", URL: "socks5://a", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if err := s.UpsertSocks(&Socks{SocksID: "sx1", URL: "socks5://b", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	got, err := s.GetSocks("sx1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.URL != "socks5://b" {
		t.Fatalf("want last-writer-wins url socks5://b, got %q", got.URL)
	}
}

func TestGetSocksNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSocks("nope"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpsertProfileAndList(t *testing.T) {
	s := newTestStore(t)
	now := nowISO()
	max := 5
	if err := s.UpsertProfile(&Profile{
		ProfileID: "p1", ProfileValue: "profile-dir-1", AllowedContainers: []string{"c1", "c2"},
		MaxUses: &max, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetProfile("p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.AllowedContainers) != 2 || got.AllowedContainers[0] != "c1" {
		t.Fatalf("allowed_containers round-trip failed: %+v", got.AllowedContainers)
	}
	if *got.MaxUses != 5 {
		t.Fatalf("max_uses round-trip failed: %v", got.MaxUses)
	}

	if err := s.IncrementProfileUses("p1", nowISO()); err != nil {
		t.Fatalf("increment: %v", err)
	}
	got, _ = s.GetProfile("p1")
	if got.UsesCount != 1 {
		t.Fatalf("want uses_count=1, got %d", got.UsesCount)
	}

	list, err := s.ListProfilesByUseAsc()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ProfileID != "p1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestChatSessionReuseFiltersGuestAndDisabled(t *testing.T) {
	s := newTestStore(t)
	now := nowISO()

	id, err := s.CreateFullChatSession(&ChatSession{
		ContainerID: "c1", PromptID: "default", ProfileID: "p1", PageURL: "https://x/",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetChatSession("c1", "default", "p1", nil, nil)
	if err != nil {
		t.Fatalf("get reusable: %v", err)
	}
	if got.ID != id {
		t.Fatalf("want id %d, got %d", id, got.ID)
	}

	guestTag := TagGuest
	if err := s.UpdateFullChatSessionByID(id, nil, nil, &guestTag, nil, nowISO()); err != nil {
		t.Fatalf("tag guest: %v", err)
	}
	if _, err := s.GetChatSession("c1", "default", "p1", nil, nil); err != ErrNotFound {
		t.Fatalf("want ErrNotFound after guest tag, got %v", err)
	}

	hasGuest, err := s.ProfileHasGuestChat("p1")
	if err != nil {
		t.Fatalf("profile has guest: %v", err)
	}
	if !hasGuest {
		t.Fatal("want profile to be guest-blocked")
	}

	n, err := s.DeleteGuestChatsForProfile("p1")
	if err != nil {
		t.Fatalf("delete guest: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 row deleted, got %d", n)
	}
	hasGuest, _ = s.ProfileHasGuestChat("p1")
	if hasGuest {
		t.Fatal("want profile unblocked after guest cleanup")
	}

	id2, err := s.CreateFullChatSession(&ChatSession{
		ContainerID: "c1", PromptID: "default", ProfileID: "p1", PageURL: "https://x/",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create 2: %v", err)
	}
	disabled := true
	if err := s.UpdateFullChatSessionByID(id2, nil, nil, nil, &disabled, nowISO()); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := s.GetChatSession("c1", "default", "p1", nil, nil); err != ErrNotFound {
		t.Fatalf("want ErrNotFound for disabled session, got %v", err)
	}
}

func TestListGuestBlockedProfileIDs(t *testing.T) {
	s := newTestStore(t)
	now := nowISO()

	id1, err := s.CreateFullChatSession(&ChatSession{ContainerID: "c1", PromptID: "default", ProfileID: "p1", PageURL: "https://x/1", CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("create p1 session: %v", err)
	}
	if _, err := s.CreateFullChatSession(&ChatSession{ContainerID: "c1", PromptID: "default", ProfileID: "p2", PageURL: "https://x/2", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create p2 session: %v", err)
	}

	ids, err := s.ListGuestBlockedProfileIDs()
	if err != nil {
		t.Fatalf("list guest blocked: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("want no blocked profiles yet, got %v", ids)
	}

	guest := TagGuest
	if err := s.UpdateFullChatSessionByID(id1, nil, nil, &guest, nil, nowISO()); err != nil {
		t.Fatalf("tag guest: %v", err)
	}

	ids, err = s.ListGuestBlockedProfileIDs()
	if err != nil {
		t.Fatalf("list guest blocked: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("want [p1], got %v", ids)
	}
}

func TestChatSessionLifecycleAndReuseBound(t *testing.T) {
	s := newTestStore(t)
	now := nowISO()

	id, err := s.CreateFullChatSession(&ChatSession{
		ContainerID: "c1", PromptID: "default", ProfileID: "p1", PageURL: "https://x/",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	chatID := "abc123"
	pageURL := "https://x/c/abc123"
	if err := s.UpdateFullChatSessionByID(id, &chatID, &pageURL, nil, nil, nowISO()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.IncrementChatUse(id, 1, nowISO()); err != nil {
		t.Fatalf("increment: %v", err)
	}

	got, err := s.GetChatSessionByID(id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.ChatID == nil || *got.ChatID != "abc123" {
		t.Fatalf("want chat_id=abc123, got %+v", got.ChatID)
	}
	if got.UsesCount != 1 {
		t.Fatalf("want uses_count=1, got %d", got.UsesCount)
	}

	if err := s.IncrementChatUse(id, 1, nowISO()); err != nil {
		t.Fatalf("increment 2: %v", err)
	}
	got, _ = s.GetChatSessionByID(id)
	if got.UsesCount != 2 {
		t.Fatalf("S5 reuse bound: want uses_count=2 after two uses, got %d", got.UsesCount)
	}

	byURL, err := s.GetFullChatSessionByURL(pageURL)
	if err != nil {
		t.Fatalf("get by url: %v", err)
	}
	if byURL.ID != id {
		t.Fatalf("want id %d, got %d", id, byURL.ID)
	}
}

func TestJobAndAttemptLifecycle(t *testing.T) {
	s := newTestStore(t)
	now := nowISO()

	job := &Job{
		JobID: "job-1", RequestID: "req-1", PromptID: "default",
		DecisionMode: "multi", FanoutRequested: 1, FanoutUsed: 1,
		StartedAt: now,
	}
	if err := s.InsertJobStart(job); err != nil {
		t.Fatalf("insert job: %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != JobPending {
		t.Fatalf("want pending, got %q", got.Status)
	}

	profileID := "p1"
	if err := s.SetJobSelectedContainers("job-1", &profileID, nil, []string{"c1"}); err != nil {
		t.Fatalf("set selected containers: %v", err)
	}

	attemptID, err := s.CreateJobAttempt(&JobAttempt{
		JobID: "job-1", ContainerID: "c1", ProfileID: "p1", StartedAt: now,
	})
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}

	resultText := "ok"
	if err := s.FinishJobAttempt(attemptID, JobSucceeded, &resultText, nil, nil, nil, nowISO()); err != nil {
		t.Fatalf("finish attempt: %v", err)
	}
	if err := s.UpdateJobFinish("job-1", JobSucceeded, &resultText, nil, nil, nil, nowISO()); err != nil {
		t.Fatalf("finish job: %v", err)
	}

	got, err = s.GetJob("job-1")
	if err != nil {
		t.Fatalf("get job final: %v", err)
	}
	if got.Status != JobSucceeded || got.FinishedAt == nil {
		t.Fatalf("P1 audit completeness: want terminal job, got %+v", got)
	}
	if len(got.ContainerIDsUsed) != 1 || got.ContainerIDsUsed[0] != "c1" {
		t.Fatalf("want container_ids_used=[c1], got %v", got.ContainerIDsUsed)
	}

	attempts, err := s.ListAttemptsForJob("job-1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Status != JobSucceeded || attempts[0].FinishedAt == nil {
		t.Fatalf("P1 audit completeness: attempt not terminal: %+v", attempts)
	}
}

func TestChatLockRoundTrip(t *testing.T) {
	s := newTestStore(t)
	now := nowISO()
	_, err := s.CreateFullChatSession(&ChatSession{
		ContainerID: "c1", PromptID: "default", ProfileID: "p1", PageURL: "https://x/c/locked",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	if err := s.LockChatByURL("https://x/c/locked", "owner-1", future); err != nil {
		t.Fatalf("lock: %v", err)
	}

	locked, err := s.ListLockedContainers(nowISO())
	if err != nil {
		t.Fatalf("list locked: %v", err)
	}
	if len(locked) != 1 || locked[0] != "c1" {
		t.Fatalf("want [c1], got %v", locked)
	}

	if err := s.UnlockChatByURL("https://x/c/locked", "owner-2"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound unlocking with wrong owner, got %v", err)
	}
	if err := s.UnlockChatByURL("https://x/c/locked", "owner-1"); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	locked, err = s.ListLockedContainers(nowISO())
	if err != nil {
		t.Fatalf("list locked after unlock: %v", err)
	}
	if len(locked) != 0 {
		t.Fatalf("want no locked containers, got %v", locked)
	}
}
