package executor

import (
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/arashi-labs/solveorch/internal/store"
)

const recentSessionScanLimit = 60

// ProfileCandidate is one entry of build_candidates' ordered output (spec §4.8).
type ProfileCandidate struct {
	ProfileID            string
	SocksOverride        *string
	PreferredContainerID *string
	PreferredChatID      *string
}

// isExplicit reports the explicit_profile flag (spec §4.8): set whenever
// profile_id or chat_url was supplied, governing soft-failure strictness.
func isExplicit(opts SolveOptions) bool {
	return opts.ProfileID != "" || opts.ChatURL != ""
}

// buildCandidates implements spec §4.8's pinned/explicit/auto candidate
// enumeration. A non-nil error wrapping ErrInvalidCandidate means the request
// itself was malformed (INVALID_REQUEST); any other error is an internal fault.
func buildCandidates(st *store.Store, promptID string, opts SolveOptions, maxChatUses int) ([]ProfileCandidate, error) {
	if opts.ChatURL != "" {
		return buildPinnedCandidate(st, promptID, opts)
	}
	if opts.ProfileID != "" {
		var socksOverride *string
		if opts.SocksOverride != "" {
			socksOverride = &opts.SocksOverride
		} else if opts.SocksID != "" {
			socksOverride = &opts.SocksID
		}
		return []ProfileCandidate{{ProfileID: opts.ProfileID, SocksOverride: socksOverride}}, nil
	}
	return buildAutoCandidates(st, promptID, maxChatUses)
}

func buildPinnedCandidate(st *store.Store, promptID string, opts SolveOptions) ([]ProfileCandidate, error) {
	cs, err := st.GetFullChatSessionByURL(opts.ChatURL)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown chat_url %q", ErrInvalidCandidate, opts.ChatURL)
	}
	if err != nil {
		return nil, fmt.Errorf("executor: get chat session by url: %w", err)
	}
	if cs.IsBlockedForReuse() {
		return nil, fmt.Errorf("%w: chat_url session is disabled, guest, or archived", ErrInvalidCandidate)
	}
	if cs.PromptID != promptID {
		return nil, fmt.Errorf("%w: chat_url session belongs to prompt %q, not %q", ErrInvalidCandidate, cs.PromptID, promptID)
	}

	profileID := opts.ProfileID
	if profileID == "" {
		profileID = cs.ProfileID
	} else if profileID != cs.ProfileID {
		return nil, fmt.Errorf("%w: chat_url session belongs to profile %q, not %q", ErrInvalidCandidate, cs.ProfileID, profileID)
	}

	var socksOverride *string
	if opts.SocksOverride != "" {
		socksOverride = &opts.SocksOverride
	} else if cs.SocksID != nil {
		socksOverride = cs.SocksID
	}

	containerID := cs.ContainerID
	return []ProfileCandidate{{
		ProfileID:            profileID,
		SocksOverride:        socksOverride,
		PreferredContainerID: &containerID,
		PreferredChatID:      cs.ChatID,
	}}, nil
}

func buildAutoCandidates(st *store.Store, promptID string, maxChatUses int) ([]ProfileCandidate, error) {
	recent, err := st.ListRecentChatSessionsForPrompt(promptID, recentSessionScanLimit)
	if err != nil {
		return nil, fmt.Errorf("executor: list recent chat sessions: %w", err)
	}

	seen := orderedmap.New[string, ProfileCandidate]()
	for _, cs := range recent {
		if cs.UsesCount >= maxChatUses {
			continue
		}
		socks := ""
		if cs.SocksID != nil {
			socks = *cs.SocksID
		}
		chatID := ""
		if cs.ChatID != nil {
			chatID = *cs.ChatID
		}
		key := cs.ProfileID + "|" + socks + "|" + cs.ContainerID + "|" + chatID
		if _, exists := seen.Get(key); exists {
			continue
		}
		containerID := cs.ContainerID
		cand := ProfileCandidate{ProfileID: cs.ProfileID, PreferredContainerID: &containerID, PreferredChatID: cs.ChatID}
		if cs.SocksID != nil {
			cand.SocksOverride = cs.SocksID
		}
		seen.Set(key, cand)
	}

	var candidates []ProfileCandidate
	for pair := seen.Oldest(); pair != nil; pair = pair.Next() {
		candidates = append(candidates, pair.Value)
	}

	profiles, err := st.ListProfilesByUseAsc()
	if err != nil {
		return nil, fmt.Errorf("executor: list profiles: %w", err)
	}
	for _, p := range profiles {
		if p.PendingReplace {
			continue
		}
		if p.MaxUses != nil && p.UsesCount >= *p.MaxUses {
			continue
		}
		candidates = append(candidates, ProfileCandidate{ProfileID: p.ProfileID})
	}

	return candidates, nil
}
