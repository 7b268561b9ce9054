// Package chatmanager reuses or creates a ChatSession for a (container,
// prompt, profile, socks) tuple and ensures the browser conversation has
// been started before the Executor sends user content (spec §4.7).
//
// Grounded on the teacher's internal/session/manager.go runTier (an
// ensure-state, then invoke, then persist sequence) and its regex-based
// marker extraction idiom.
package chatmanager

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/arashi-labs/solveorch/internal/store"
	"github.com/arashi-labs/solveorch/internal/upstream"
)

// ErrUnregisteredChatURL is returned when a pinned chat_url has no matching row.
var ErrUnregisteredChatURL = errors.New("chatmanager: unregistered chat_url")

// ErrChatURLContainerMismatch is returned when a pinned chat_url's session
// belongs to a different container than the one selected (defense-in-depth
// against selector bugs).
var ErrChatURLContainerMismatch = errors.New("chatmanager: chat_url container mismatch")

var chatIDPattern = regexp.MustCompile(`/c/([^/?#]+)`)

// ExtractChatID pulls the server-assigned chat id out of a page URL.
func ExtractChatID(pageURL string) string {
	m := chatIDPattern.FindStringSubmatch(pageURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// GetOrCreateParams parameterizes GetOrCreateChat (spec §4.7).
type GetOrCreateParams struct {
	ContainerID string
	PromptID    string
	ProfileID   string
	SocksID     *string
	ChatURL     *string
	ForceNew    bool
	MaxChatUses int
	RootURL     string // service root, seeded as page_url on a fresh row
}

// Manager implements spec §4.7 against a Store.
type Manager struct {
	store *store.Store
}

// New returns a Manager backed by s.
func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }

// GetOrCreateChat implements spec §4.7's get_or_create_chat.
func (m *Manager) GetOrCreateChat(p GetOrCreateParams) (*store.ChatSession, error) {
	if p.ChatURL != nil && *p.ChatURL != "" {
		cs, err := m.store.GetFullChatSessionByURL(*p.ChatURL)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnregisteredChatURL, *p.ChatURL)
		}
		if err != nil {
			return nil, fmt.Errorf("chatmanager: get chat session by url: %w", err)
		}
		if cs.ContainerID != p.ContainerID {
			return nil, fmt.Errorf("%w: session on %q, selected %q", ErrChatURLContainerMismatch, cs.ContainerID, p.ContainerID)
		}
		return cs, nil
	}

	if !p.ForceNew {
		existing, err := m.store.GetChatSession(p.ContainerID, p.PromptID, p.ProfileID, p.SocksID, nil)
		if err == nil && existing.UsesCount < p.MaxChatUses {
			return existing, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("chatmanager: get chat session: %w", err)
		}
	}

	now := nowISO()
	id, err := m.store.CreateFullChatSession(&store.ChatSession{
		ContainerID: p.ContainerID, PromptID: p.PromptID, ProfileID: p.ProfileID, SocksID: p.SocksID,
		PageURL: p.RootURL, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("chatmanager: create chat session: %w", err)
	}
	return m.store.GetChatSessionByID(id)
}

// EnsureLoadedParams parameterizes EnsureChatLoaded.
type EnsureLoadedParams struct {
	StartPrompt  string
	ProfileValue string
	SocksURL     string
	RequestID    string
}

// EnsureChatLoaded implements spec §4.7's ensure_chat_loaded. UpstreamBusy
// propagates unchanged — the Executor translates it to container-busy.
func (m *Manager) EnsureChatLoaded(ctx context.Context, t upstream.Transport, cs *store.ChatSession, p EnsureLoadedParams) (*store.ChatSession, error) {
	if cs.ChatID != nil {
		return cs, nil
	}
	if p.StartPrompt == "" {
		return cs, nil
	}

	resp, err := t.AnalyzeText(ctx, upstream.AnalyzeTextRequest{
		Text: p.StartPrompt, URL: cs.PageURL, Profile: p.ProfileValue, Socks: p.SocksURL, RequestID: p.RequestID,
	})
	if err != nil {
		return cs, err
	}

	pageURL := resp.EffectivePageURL()
	if pageURL == "" {
		pageURL = cs.PageURL
	}
	chatID := ExtractChatID(pageURL)

	now := nowISO()
	disabled := false
	var chatIDPtr *string
	if chatID != "" {
		chatIDPtr = &chatID
	}
	if err := m.store.UpdateFullChatSessionByID(cs.ID, chatIDPtr, &pageURL, nil, &disabled, now); err != nil {
		return cs, fmt.Errorf("chatmanager: update chat session: %w", err)
	}
	if err := m.store.IncrementChatUse(cs.ID, 1, now); err != nil {
		return cs, fmt.Errorf("chatmanager: increment chat use: %w", err)
	}
	return m.store.GetChatSessionByID(cs.ID)
}
