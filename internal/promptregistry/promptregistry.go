// Package promptregistry maps a prompt_id to its start-prompt text, cached
// by file modification time (spec §4.5). Grounded on the teacher's
// internal/session/manager.go prompt-file reading, generalized to a
// (path, mtime)-keyed cache.
package promptregistry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrUnknownPrompt is returned when prompt_id is not configured.
var ErrUnknownPrompt = errors.New("promptregistry: unknown prompt_id")

const defaultMaxChatUses = 50

// PromptSpec is one configured prompt (spec §6 prompts[]).
type PromptSpec struct {
	PromptID           string
	File               string // path, relative to the config directory unless absolute
	DefaultMaxChatUses int
}

// Prompt is the resolved view returned by Get (spec §4.5).
type Prompt struct {
	PromptID           string
	StartPrompt        string
	DefaultMaxChatUses int
	FilePath           string
}

type cacheEntry struct {
	mtime   time.Time
	content string
}

// Registry caches prompt file contents keyed by (abs_path, mtime).
type Registry struct {
	configDir string
	specs     map[string]PromptSpec

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New builds a Registry from configured prompt specs, resolving relative
// file paths against configDir.
func New(configDir string, specs []PromptSpec) *Registry {
	byID := make(map[string]PromptSpec, len(specs))
	for _, s := range specs {
		byID[s.PromptID] = s
	}
	return &Registry{configDir: configDir, specs: byID, cache: make(map[string]cacheEntry)}
}

// Get resolves prompt_id to its start-prompt text. A missing file means
// "do not send a start prompt on first use" — it yields an empty
// StartPrompt rather than an error.
func (r *Registry) Get(promptID string) (*Prompt, error) {
	spec, ok := r.specs[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrompt, promptID)
	}

	maxUses := spec.DefaultMaxChatUses
	if maxUses <= 0 {
		maxUses = defaultMaxChatUses
	}

	if spec.File == "" {
		return &Prompt{PromptID: promptID, DefaultMaxChatUses: maxUses}, nil
	}

	path := spec.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.configDir, path)
	}

	content, err := r.readCached(path)
	if err != nil {
		return &Prompt{PromptID: promptID, DefaultMaxChatUses: maxUses, FilePath: path}, nil
	}
	return &Prompt{PromptID: promptID, StartPrompt: content, DefaultMaxChatUses: maxUses, FilePath: path}, nil
}

func (r *Registry) readCached(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	mtime := info.ModTime()

	r.mu.Lock()
	if entry, ok := r.cache[path]; ok && entry.mtime.Equal(mtime) {
		r.mu.Unlock()
		return entry.content, nil
	}
	r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(data)

	r.mu.Lock()
	r.cache[path] = cacheEntry{mtime: mtime, content: content}
	r.mu.Unlock()
	return content, nil
}
