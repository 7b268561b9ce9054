// Package iolog implements the single-method IO logging sink named in
// spec.md §9 ("replace [sink polymorphism] with a single logger interface
// with one method carrying the full record") plus its one concrete rotating
// file implementation, and the secret-masking/body-summarization helpers
// required by spec §4.2.
package iolog

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/dustin/go-humanize"
	"github.com/tidwall/sjson"
)

// Record is the full shape of one request/response exchange with a container.
type Record struct {
	Timestamp    string
	RequestID    string
	ContainerID  string
	Method       string
	URL          string
	RequestBody  string
	ResponseBody string
	StatusCode   int
	DurationMS   int64
	Err          string
}

// Sink is the single logging interface every IO log destination implements.
type Sink interface {
	LogExchange(rec Record)
}

// NopSink discards every record; used when container_io_log.enabled is false.
type NopSink struct{}

// LogExchange implements Sink.
func (NopSink) LogExchange(Record) {}

// RotatingFileSink appends one JSON line per exchange to a file, rotating to
// a numbered backup once the file exceeds maxBytes, keeping at most
// backupCount old files.
type RotatingFileSink struct {
	mu           sync.Mutex
	path         string
	maxBytes     int64
	backupCount  int
	includeBody  bool
	maxFieldChars int
	file         *os.File
	size         int64
}

// Config controls what a RotatingFileSink records (spec §6 container_io_log).
type Config struct {
	Dir            string
	MaxBytes       int64
	BackupCount    int
	IncludeBodies  bool
	MaxFieldChars  int
}

// NewRotatingFileSink opens (creating if needed) the active log file under cfg.Dir.
func NewRotatingFileSink(cfg Config) (*RotatingFileSink, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("iolog: create dir %q: %w", cfg.Dir, err)
	}
	path := filepath.Join(cfg.Dir, "container_io.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("iolog: open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("iolog: stat %q: %w", path, err)
	}
	maxFieldChars := cfg.MaxFieldChars
	if maxFieldChars <= 0 {
		maxFieldChars = 256
	}
	return &RotatingFileSink{
		path:          path,
		maxBytes:      cfg.MaxBytes,
		backupCount:   cfg.BackupCount,
		includeBody:   cfg.IncludeBodies,
		maxFieldChars: maxFieldChars,
		file:          f,
		size:          info.Size(),
	}, nil
}

// Close closes the underlying file.
func (s *RotatingFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// LogExchange implements Sink.
func (s *RotatingFileSink) LogExchange(rec Record) {
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	rec.URL = MaskSocksUserinfo(rec.URL)
	if !s.includeBody {
		rec.RequestBody = ""
		rec.ResponseBody = ""
	} else {
		rec.RequestBody = SummarizeBody(rec.RequestBody, s.maxFieldChars)
		rec.ResponseBody = SummarizeBody(rec.ResponseBody, s.maxFieldChars)
	}

	line := encodeLine(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.file.WriteString(line + "\n")
	if err != nil {
		return
	}
	s.size += int64(n)
	if s.maxBytes > 0 && s.size >= s.maxBytes {
		s.rotateLocked()
	}
}

func (s *RotatingFileSink) rotateLocked() {
	_ = s.file.Close()
	for i := s.backupCount - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", s.path, i)
		newPath := fmt.Sprintf("%s.%d", s.path, i+1)
		_ = os.Rename(oldPath, newPath)
	}
	if s.backupCount > 0 {
		_ = os.Rename(s.path, fmt.Sprintf("%s.1", s.path))
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	s.file = f
	s.size = 0
}

// RotationSummary formats a human-readable note about the current file size
// against the rotation threshold (ashureev-shsh-labs-style one-liner).
func (s *RotatingFileSink) RotationSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%s (%s / %s max)", s.path, humanize.Bytes(uint64(s.size)), humanize.Bytes(uint64(s.maxBytes)))
}

func encodeLine(rec Record) string {
	js := `{}`
	js, _ = sjson.Set(js, "ts", rec.Timestamp)
	js, _ = sjson.Set(js, "request_id", rec.RequestID)
	js, _ = sjson.Set(js, "container_id", rec.ContainerID)
	js, _ = sjson.Set(js, "method", rec.Method)
	js, _ = sjson.Set(js, "url", rec.URL)
	js, _ = sjson.Set(js, "status_code", rec.StatusCode)
	js, _ = sjson.Set(js, "duration_ms", rec.DurationMS)
	if rec.Err != "" {
		js, _ = sjson.Set(js, "err", rec.Err)
	}
	if rec.RequestBody != "" {
		js, _ = sjson.SetRaw(js, "request_body", rec.RequestBody)
	}
	if rec.ResponseBody != "" {
		js, _ = sjson.SetRaw(js, "response_body", rec.ResponseBody)
	}
	return js
}

// MaskSocksUserinfo masks credentials embedded in a URL's userinfo component
// (spec §4.2: "secrets in proxy credentials in URL-encoded userinfo MUST be
// masked"). Non-URL or userinfo-less inputs pass through unchanged.
func MaskSocksUserinfo(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	username := u.User.Username()
	u.User = nil
	prefix := "//"
	if u.Scheme != "" {
		prefix = u.Scheme + "://"
	}
	rest := strings.TrimPrefix(u.String(), prefix)
	return prefix + url.User(username).String() + ":***@" + rest
}

// SummarizeBody rewrites any top-level image_b64 field to a length+prefix
// summary and truncates other string fields longer than maxFieldChars,
// without a full unmarshal of potentially multi-MB payloads.
func SummarizeBody(body string, maxFieldChars int) string {
	if body == "" {
		return body
	}
	data := []byte(body)
	if v, dtype, _, err := jsonparser.Get(data, "image_b64"); err == nil && dtype == jsonparser.String {
		summary := summarizeB64(string(v))
		if out, err := sjson.SetBytes(data, "image_b64", summary); err == nil {
			data = out
		}
	}
	out := string(data)
	_ = jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		if dataType == jsonparser.String && string(key) != "image_b64" && len(value) > maxFieldChars {
			truncated := string(value[:maxFieldChars]) + "…"
			if next, err := sjson.Set(out, string(key), truncated); err == nil {
				out = next
			}
		}
		return nil
	})
	return out
}

func summarizeB64(s string) string {
	const headLen = 16
	head := s
	if len(s) > headLen {
		head = s[:headLen]
	}
	return fmt.Sprintf("<base64 len=%d head=%s...>", len(s), head)
}
