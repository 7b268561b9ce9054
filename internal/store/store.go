// Package store is the durable backing store for socks proxies, profiles,
// chat sessions, jobs, and job attempts (spec §3, §4.1).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by single-row lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a sql.DB connection to the SQLite database.
type Store struct {
	conn *sql.DB
}

// Open creates a new Store and runs all pending migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}

	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying *sql.DB for report/status aggregation queries.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- Socks ---

// UpsertSocks inserts or replaces a socks row; last writer wins per id.
func (s *Store) UpsertSocks(sx *Socks) error {
	_, err := s.conn.Exec(
		`INSERT INTO socks (socks_id, url, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(socks_id) DO UPDATE SET url = excluded.url, updated_at = excluded.updated_at`,
		sx.SocksID, sx.URL, sx.CreatedAt, sx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert socks %q: %w", sx.SocksID, err)
	}
	return nil
}

// GetSocks returns the socks row for id, or ErrNotFound.
func (s *Store) GetSocks(socksID string) (*Socks, error) {
	sx := &Socks{}
	err := s.conn.QueryRow(
		`SELECT socks_id, url, created_at, updated_at FROM socks WHERE socks_id = ?`, socksID,
	).Scan(&sx.SocksID, &sx.URL, &sx.CreatedAt, &sx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get socks %q: %w", socksID, err)
	}
	return sx, nil
}

// --- Profile ---

const profileColumns = `profile_id, profile_value, default_socks_id, allowed_containers, max_uses, uses_count, pending_replace, created_at, updated_at`

func scanProfile(scanner interface{ Scan(...any) error }, p *Profile) error {
	var allowed string
	var pendingReplace int
	if err := scanner.Scan(&p.ProfileID, &p.ProfileValue, &p.DefaultSocksID, &allowed, &p.MaxUses, &p.UsesCount, &pendingReplace, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	p.PendingReplace = pendingReplace == 1
	if allowed == "" {
		p.AllowedContainers = nil
	} else if err := json.Unmarshal([]byte(allowed), &p.AllowedContainers); err != nil {
		return fmt.Errorf("decode allowed_containers: %w", err)
	}
	return nil
}

// UpsertProfile inserts or replaces a profile row; last writer wins per id.
func (s *Store) UpsertProfile(p *Profile) error {
	allowed, err := json.Marshal(p.AllowedContainers)
	if err != nil {
		return fmt.Errorf("encode allowed_containers: %w", err)
	}
	_, err = s.conn.Exec(
		`INSERT INTO profiles (profile_id, profile_value, default_socks_id, allowed_containers, max_uses, uses_count, pending_replace, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET
		   profile_value = excluded.profile_value,
		   default_socks_id = excluded.default_socks_id,
		   allowed_containers = excluded.allowed_containers,
		   max_uses = excluded.max_uses,
		   pending_replace = excluded.pending_replace,
		   updated_at = excluded.updated_at`,
		p.ProfileID, p.ProfileValue, p.DefaultSocksID, string(allowed), p.MaxUses, p.UsesCount, boolToInt(p.PendingReplace), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile %q: %w", p.ProfileID, err)
	}
	return nil
}

// GetProfile returns the profile row for id, or ErrNotFound.
func (s *Store) GetProfile(profileID string) (*Profile, error) {
	p := &Profile{}
	row := s.conn.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE profile_id = ?`, profileID)
	if err := scanProfile(row, p); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get profile %q: %w", profileID, err)
	}
	return p, nil
}

// IncrementProfileUses atomically increments a profile's uses_count by 1.
func (s *Store) IncrementProfileUses(profileID string, updatedAt string) error {
	_, err := s.conn.Exec(
		`UPDATE profiles SET uses_count = uses_count + 1, updated_at = ? WHERE profile_id = ?`,
		updatedAt, profileID,
	)
	if err != nil {
		return fmt.Errorf("increment profile uses %q: %w", profileID, err)
	}
	return nil
}

// ListProfilesByUseAsc returns all profiles ordered by (uses_count asc, profile_id asc),
// the candidate fallback ordering named in spec §4.8.
func (s *Store) ListProfilesByUseAsc() ([]Profile, error) {
	rows, err := s.conn.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY uses_count ASC, profile_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := scanProfile(rows, &p); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// --- ChatSession ---

const chatSessionColumns = `id, container_id, prompt_id, profile_id, socks_id, chat_id, page_url, uses_count, disabled, tag, locked_by, locked_until, created_at, updated_at`

func scanChatSession(scanner interface{ Scan(...any) error }, c *ChatSession) error {
	var disabled int
	if err := scanner.Scan(&c.ID, &c.ContainerID, &c.PromptID, &c.ProfileID, &c.SocksID, &c.ChatID, &c.PageURL, &c.UsesCount, &disabled, &c.Tag, &c.LockedBy, &c.LockedUntil, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	c.Disabled = disabled == 1
	return nil
}

// GetChatSession returns the most recently updated, reusable (I1) chat session
// matching the four keys, narrowed to preferredChatID when non-nil.
func (s *Store) GetChatSession(containerID, promptID, profileID string, socksID *string, preferredChatID *string) (*ChatSession, error) {
	query := `SELECT ` + chatSessionColumns + ` FROM chat_sessions
		WHERE container_id = ? AND prompt_id = ? AND profile_id = ?
		  AND (socks_id = ? OR (socks_id IS NULL AND ? IS NULL))
		  AND disabled = 0
		  AND (chat_id IS NULL OR chat_id NOT IN ('guest', 'archive'))
		  AND (tag IS NULL OR tag NOT IN ('guest', 'archive'))`
	args := []any{containerID, promptID, profileID, socksID, socksID}
	if preferredChatID != nil {
		query += ` AND chat_id = ?`
		args = append(args, *preferredChatID)
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`

	c := &ChatSession{}
	row := s.conn.QueryRow(query, args...)
	if err := scanChatSession(row, c); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get chat session: %w", err)
	}
	return c, nil
}

// CreateFullChatSession inserts a new row with uses_count=0, disabled=0, null chat_id.
func (s *Store) CreateFullChatSession(c *ChatSession) (int64, error) {
	res, err := s.conn.Exec(
		`INSERT INTO chat_sessions (container_id, prompt_id, profile_id, socks_id, chat_id, page_url, uses_count, disabled, tag, locked_by, locked_until, created_at, updated_at)
		 VALUES (?, ?, ?, ?, NULL, ?, 0, 0, NULL, NULL, NULL, ?, ?)`,
		c.ContainerID, c.PromptID, c.ProfileID, c.SocksID, c.PageURL, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("create chat session: %w", err)
	}
	return res.LastInsertId()
}

// GetChatSessionByID returns a chat session by its row id, ignoring reuse filters.
func (s *Store) GetChatSessionByID(id int64) (*ChatSession, error) {
	c := &ChatSession{}
	row := s.conn.QueryRow(`SELECT `+chatSessionColumns+` FROM chat_sessions WHERE id = ?`, id)
	if err := scanChatSession(row, c); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get chat session %d: %w", id, err)
	}
	return c, nil
}

// UpdateFullChatSessionByID applies each non-nil parameter (COALESCE semantics).
func (s *Store) UpdateFullChatSessionByID(id int64, chatID, pageURL, tag *string, disabled *bool, updatedAt string) error {
	var disabledVal *int
	if disabled != nil {
		v := boolToInt(*disabled)
		disabledVal = &v
	}
	_, err := s.conn.Exec(
		`UPDATE chat_sessions SET
		   chat_id = COALESCE(?, chat_id),
		   page_url = COALESCE(?, page_url),
		   tag = COALESCE(?, tag),
		   disabled = COALESCE(?, disabled),
		   updated_at = ?
		 WHERE id = ?`,
		chatID, pageURL, tag, disabledVal, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update chat session %d: %w", id, err)
	}
	return nil
}

// IncrementChatUse atomically increments a chat session's uses_count by `by`.
func (s *Store) IncrementChatUse(id int64, by int, updatedAt string) error {
	_, err := s.conn.Exec(
		`UPDATE chat_sessions SET uses_count = uses_count + ?, updated_at = ? WHERE id = ?`,
		by, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("increment chat use %d: %w", id, err)
	}
	return nil
}

// GetFullChatSessionByURL ignores disabled/tag/chat_id filters so admin and
// diagnostic code can inspect blocked rows.
func (s *Store) GetFullChatSessionByURL(pageURL string) (*ChatSession, error) {
	c := &ChatSession{}
	row := s.conn.QueryRow(`SELECT `+chatSessionColumns+` FROM chat_sessions WHERE page_url = ? ORDER BY updated_at DESC LIMIT 1`, pageURL)
	if err := scanChatSession(row, c); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get chat session by url: %w", err)
	}
	return c, nil
}

// ProfileHasGuestChat reports whether any chat session for profileID carries
// the guest marker (I2).
func (s *Store) ProfileHasGuestChat(profileID string) (bool, error) {
	count, err := s.CountGuestChatsForProfile(profileID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountGuestChatsForProfile counts chat sessions carrying the guest marker for profileID.
func (s *Store) CountGuestChatsForProfile(profileID string) (int, error) {
	var count int
	err := s.conn.QueryRow(
		`SELECT COUNT(*) FROM chat_sessions WHERE profile_id = ? AND (chat_id = 'guest' OR tag = 'guest')`,
		profileID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count guest chats for profile %q: %w", profileID, err)
	}
	return count, nil
}

// ListGuestBlockedProfileIDs returns the distinct profile ids currently
// carrying at least one guest-marked chat session (status_service.py's
// list_blocked_profiles, used by GET /v1/status/all).
func (s *Store) ListGuestBlockedProfileIDs() ([]string, error) {
	rows, err := s.conn.Query(
		`SELECT DISTINCT profile_id FROM chat_sessions WHERE chat_id = 'guest' OR tag = 'guest' ORDER BY profile_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list guest blocked profiles: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan guest blocked profile: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteGuestChatsForProfile removes all guest-marked chat sessions for profileID.
func (s *Store) DeleteGuestChatsForProfile(profileID string) (int64, error) {
	res, err := s.conn.Exec(
		`DELETE FROM chat_sessions WHERE profile_id = ? AND (chat_id = 'guest' OR tag = 'guest')`,
		profileID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete guest chats for profile %q: %w", profileID, err)
	}
	return res.RowsAffected()
}

// ArchiveChatsForProfile marks every non-disabled chat session for profileID
// as tag='archive', disabled=1 (retired, kept for audit).
func (s *Store) ArchiveChatsForProfile(profileID string, updatedAt string) (int64, error) {
	res, err := s.conn.Exec(
		`UPDATE chat_sessions SET tag = 'archive', disabled = 1, updated_at = ? WHERE profile_id = ? AND disabled = 0`,
		updatedAt, profileID,
	)
	if err != nil {
		return 0, fmt.Errorf("archive chats for profile %q: %w", profileID, err)
	}
	return res.RowsAffected()
}

// ListRecentChatSessionsForPrompt returns up to `limit` recent, non-disabled,
// non-guest/archive chat sessions for promptID, most recently updated first —
// the seed set for the executor's auto candidate path (§4.8).
func (s *Store) ListRecentChatSessionsForPrompt(promptID string, limit int) ([]ChatSession, error) {
	rows, err := s.conn.Query(
		`SELECT `+chatSessionColumns+` FROM chat_sessions
		 WHERE prompt_id = ? AND disabled = 0
		   AND (chat_id IS NULL OR chat_id NOT IN ('guest', 'archive'))
		   AND (tag IS NULL OR tag NOT IN ('guest', 'archive'))
		 ORDER BY updated_at DESC LIMIT ?`,
		promptID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent chat sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var sessions []ChatSession
	for rows.Next() {
		var c ChatSession
		if err := scanChatSession(rows, &c); err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		sessions = append(sessions, c)
	}
	return sessions, rows.Err()
}

// LockChatByURL installs a cooperative lock on the chat session at pageURL
// that holds until the absolute timestamp lockedUntil.
func (s *Store) LockChatByURL(pageURL, lockedBy string, lockedUntil string) error {
	res, err := s.conn.Exec(
		`UPDATE chat_sessions SET locked_by = ?, locked_until = ? WHERE page_url = ?`,
		lockedBy, lockedUntil, pageURL,
	)
	if err != nil {
		return fmt.Errorf("lock chat %q: %w", pageURL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock chat %q: %w", pageURL, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnlockChatByURL releases the lock, but only if lockedBy is the original owner.
func (s *Store) UnlockChatByURL(pageURL, lockedBy string) error {
	res, err := s.conn.Exec(
		`UPDATE chat_sessions SET locked_by = NULL, locked_until = NULL WHERE page_url = ? AND locked_by = ?`,
		pageURL, lockedBy,
	)
	if err != nil {
		return fmt.Errorf("unlock chat %q: %w", pageURL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlock chat %q: %w", pageURL, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLockedContainers returns container ids with at least one chat session
// still within its lock TTL as of nowISO — used by ContainerSelector as a blocklist.
func (s *Store) ListLockedContainers(nowISO string) ([]string, error) {
	rows, err := s.conn.Query(
		`SELECT DISTINCT container_id FROM chat_sessions WHERE locked_by IS NOT NULL AND locked_until > ?`,
		nowISO,
	)
	if err != nil {
		return nil, fmt.Errorf("list locked containers: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan locked container: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Job ---

const jobColumns = `job_id, request_id, prompt_id, selected_prompt_id, decision_mode, fanout_requested, fanout_used, container_ids_used, input_fingerprint, profile_id, socks_id, status, result_text, result_raw, error_code, error_message, started_at, finished_at`

func scanJob(scanner interface{ Scan(...any) error }, j *Job) error {
	var containerIDs string
	if err := scanner.Scan(&j.JobID, &j.RequestID, &j.PromptID, &j.SelectedPromptID, &j.DecisionMode, &j.FanoutRequested, &j.FanoutUsed, &containerIDs, &j.InputFingerprint, &j.ProfileID, &j.SocksID, &j.Status, &j.ResultText, &j.ResultRaw, &j.ErrorCode, &j.ErrorMessage, &j.StartedAt, &j.FinishedAt); err != nil {
		return err
	}
	if containerIDs != "" {
		if err := json.Unmarshal([]byte(containerIDs), &j.ContainerIDsUsed); err != nil {
			return fmt.Errorf("decode container_ids_used: %w", err)
		}
	}
	return nil
}

// InsertJobStart inserts a Job row before profile resolution so validation
// failures still leave an audit row (spec §4.8 Job lifecycle).
func (s *Store) InsertJobStart(j *Job) error {
	_, err := s.conn.Exec(
		`INSERT INTO jobs (job_id, request_id, prompt_id, selected_prompt_id, decision_mode, fanout_requested, fanout_used, container_ids_used, input_fingerprint, profile_id, socks_id, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, '[]', ?, ?, ?, ?, ?)`,
		j.JobID, j.RequestID, j.PromptID, j.SelectedPromptID, j.DecisionMode, j.FanoutRequested, j.FanoutUsed, j.InputFingerprint, j.ProfileID, j.SocksID, JobPending, j.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job start %q: %w", j.JobID, err)
	}
	return nil
}

// SetJobSelectedContainers records the resolved profile/socks and the
// containers used once selection succeeds.
func (s *Store) SetJobSelectedContainers(jobID string, profileID, socksID *string, containerIDsUsed []string) error {
	ids, err := json.Marshal(containerIDsUsed)
	if err != nil {
		return fmt.Errorf("encode container_ids_used: %w", err)
	}
	_, err = s.conn.Exec(
		`UPDATE jobs SET profile_id = ?, socks_id = ?, container_ids_used = ? WHERE job_id = ?`,
		profileID, socksID, string(ids), jobID,
	)
	if err != nil {
		return fmt.Errorf("set job selected containers %q: %w", jobID, err)
	}
	return nil
}

// UpdateJobFinish terminates the job row with a non-null status and finished_at (I4).
func (s *Store) UpdateJobFinish(jobID, status string, resultText, resultRaw, errorCode, errorMessage *string, finishedAt string) error {
	_, err := s.conn.Exec(
		`UPDATE jobs SET status = ?, result_text = ?, result_raw = ?, error_code = ?, error_message = ?, finished_at = ? WHERE job_id = ?`,
		status, resultText, resultRaw, errorCode, errorMessage, finishedAt, jobID,
	)
	if err != nil {
		return fmt.Errorf("update job finish %q: %w", jobID, err)
	}
	return nil
}

// GetJob returns the job row for jobID, or ErrNotFound.
func (s *Store) GetJob(jobID string) (*Job, error) {
	j := &Job{}
	row := s.conn.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	if err := scanJob(row, j); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get job %q: %w", jobID, err)
	}
	return j, nil
}

// --- JobAttempt ---

const jobAttemptColumns = `id, job_id, chat_session_id, chat_id, page_url, container_id, profile_id, socks_id, status, result_text, result_raw, error_code, error_message, started_at, finished_at`

func scanJobAttempt(scanner interface{ Scan(...any) error }, a *JobAttempt) error {
	return scanner.Scan(&a.ID, &a.JobID, &a.ChatSessionID, &a.ChatID, &a.PageURL, &a.ContainerID, &a.ProfileID, &a.SocksID, &a.Status, &a.ResultText, &a.ResultRaw, &a.ErrorCode, &a.ErrorMessage, &a.StartedAt, &a.FinishedAt)
}

// CreateJobAttempt inserts a new pending job_attempts row and returns its id.
func (s *Store) CreateJobAttempt(a *JobAttempt) (int64, error) {
	res, err := s.conn.Exec(
		`INSERT INTO job_attempts (job_id, chat_session_id, chat_id, page_url, container_id, profile_id, socks_id, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.JobID, a.ChatSessionID, a.ChatID, a.PageURL, a.ContainerID, a.ProfileID, a.SocksID, JobPending, a.StartedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("create job attempt: %w", err)
	}
	return res.LastInsertId()
}

// FinishJobAttempt terminates the attempt row with a non-null status and finished_at (I4).
func (s *Store) FinishJobAttempt(id int64, status string, resultText, resultRaw, errorCode, errorMessage *string, finishedAt string) error {
	_, err := s.conn.Exec(
		`UPDATE job_attempts SET status = ?, result_text = ?, result_raw = ?, error_code = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, resultText, resultRaw, errorCode, errorMessage, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("finish job attempt %d: %w", id, err)
	}
	return nil
}

// ListAttemptsForJob returns every attempt row for jobID in insertion order.
func (s *Store) ListAttemptsForJob(jobID string) ([]JobAttempt, error) {
	rows, err := s.conn.Query(`SELECT `+jobAttemptColumns+` FROM job_attempts WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list attempts for job %q: %w", jobID, err)
	}
	defer rows.Close() //nolint:errcheck

	var attempts []JobAttempt
	for rows.Next() {
		var a JobAttempt
		if err := scanJobAttempt(rows, &a); err != nil {
			return nil, fmt.Errorf("scan job attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
