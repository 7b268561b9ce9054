// Package profilemanager resolves a logical profile id (plus an optional
// per-request socks override) into a concrete browser-profile value and
// socks URL (spec §4.4).
package profilemanager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arashi-labs/solveorch/internal/store"
)

// ErrUnknownProfile is returned when profile_id does not resolve in the store.
var ErrUnknownProfile = errors.New("profilemanager: unknown profile")

// ErrUnknownSocks is returned when a socks id (from override or profile default) does not resolve.
var ErrUnknownSocks = errors.New("profilemanager: unknown socks")

var socksSchemes = []string{"socks5://", "socks4://", "socks://"}

// ResolvedProfile is the output of resolving a request against the profile store.
type ResolvedProfile struct {
	ProfileID         string
	ProfileValue      string
	SocksID           *string
	SocksURL          *string
	AllowedContainers []string
	MaxUses           *int
	PendingReplace    bool
}

// Manager resolves profiles through the Store.
type Manager struct {
	store *store.Store
}

// New returns a Manager backed by s.
func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

// ResolveForRequest implements spec §4.4.
func (m *Manager) ResolveForRequest(profileID string, socksOverride *string, allowSocksOverride bool) (*ResolvedProfile, error) {
	p, err := m.store.GetProfile(profileID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("profilemanager: get profile %q: %w", profileID, err)
	}

	rp := &ResolvedProfile{
		ProfileID:         p.ProfileID,
		ProfileValue:      p.ProfileValue,
		SocksID:           p.DefaultSocksID,
		AllowedContainers: p.AllowedContainers,
		MaxUses:           p.MaxUses,
		PendingReplace:    p.PendingReplace,
	}

	if socksOverride != nil && *socksOverride != "" && allowSocksOverride {
		if hasSocksScheme(*socksOverride) {
			url := *socksOverride
			rp.SocksURL = &url
			rp.SocksID = nil
		} else {
			id := *socksOverride
			rp.SocksID = &id
		}
	}

	if rp.SocksURL == nil && rp.SocksID != nil {
		sx, err := m.store.GetSocks(*rp.SocksID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSocks, *rp.SocksID)
		}
		if err != nil {
			return nil, fmt.Errorf("profilemanager: get socks %q: %w", *rp.SocksID, err)
		}
		rp.SocksURL = &sx.URL
	}

	return rp, nil
}

func hasSocksScheme(v string) bool {
	for _, scheme := range socksSchemes {
		if strings.HasPrefix(v, scheme) {
			return true
		}
	}
	return false
}
