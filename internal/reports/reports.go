// Package reports implements the read-only aggregation queries behind
// GET /v1/reports/* (supplemented from original_source/reports/queries.py,
// not present in the distilled spec). Grounded on internal/store's
// aggregate-SQL-behind-a-typed-method pattern (e.g. ListLockedContainers).
package reports

import (
	"database/sql"
	"fmt"
)

// Range bounds a report query by half-open [From, To) and paginates the result.
type Range struct {
	From   string
	To     string
	Limit  int
	Offset int
}

func (r Range) normalized() Range {
	out := r
	if out.Limit <= 0 || out.Limit > 500 {
		out.Limit = 50
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}

// ContainerUsage is one row of the per-container usage report.
type ContainerUsage struct {
	ContainerID    string  `json:"container_id"`
	JobsTotal      int     `json:"jobs_total"`
	JobsSucceeded  int     `json:"jobs_succeeded"`
	JobsFailed     int     `json:"jobs_failed"`
	AvgDurationSec float64 `json:"avg_duration_sec"`
}

// ProfileUsage is one row of the per-(profile, prompt) usage report.
type ProfileUsage struct {
	ProfileID     string `json:"profile_id"`
	PromptID      string `json:"prompt_id"`
	JobsTotal     int    `json:"jobs_total"`
	JobsSucceeded int    `json:"jobs_succeeded"`
	JobsFailed    int    `json:"jobs_failed"`
}

// PromptUsage is one row of the per-prompt usage summary.
type PromptUsage struct {
	PromptID      string `json:"prompt_id"`
	JobsTotal     int    `json:"jobs_total"`
	JobsSucceeded int    `json:"jobs_succeeded"`
	JobsFailed    int    `json:"jobs_failed"`
}

// Reporter runs aggregate queries directly against the store's connection.
type Reporter struct {
	db *sql.DB
}

// New returns a Reporter backed by db (typically store.Store.Conn()).
func New(db *sql.DB) *Reporter {
	return &Reporter{db: db}
}

// ContainersUsage aggregates job_attempts by container_id over [r.From, r.To).
func (rp *Reporter) ContainersUsage(r Range) ([]ContainerUsage, error) {
	r = r.normalized()
	rows, err := rp.db.Query(
		`SELECT
			container_id,
			COUNT(*) AS jobs_total,
			SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END) AS jobs_succeeded,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS jobs_failed,
			COALESCE(AVG(CASE WHEN finished_at IS NOT NULL
				THEN (julianday(finished_at) - julianday(started_at)) * 86400.0
				ELSE NULL END), 0) AS avg_duration_sec
		 FROM job_attempts
		 WHERE started_at >= ? AND started_at < ?
		 GROUP BY container_id
		 ORDER BY jobs_total DESC, container_id ASC
		 LIMIT ? OFFSET ?`,
		r.From, r.To, r.Limit, r.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("reports: containers usage: %w", err)
	}
	defer rows.Close()

	var out []ContainerUsage
	for rows.Next() {
		var u ContainerUsage
		if err := rows.Scan(&u.ContainerID, &u.JobsTotal, &u.JobsSucceeded, &u.JobsFailed, &u.AvgDurationSec); err != nil {
			return nil, fmt.Errorf("reports: scan container usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ProfilesUsage aggregates job_attempts by (profile_id, prompt_id) over [r.From, r.To).
// job_attempts has no prompt_id column; it is joined in through the owning job.
func (rp *Reporter) ProfilesUsage(r Range) ([]ProfileUsage, error) {
	r = r.normalized()
	rows, err := rp.db.Query(
		`SELECT
			a.profile_id,
			j.prompt_id,
			COUNT(*) AS jobs_total,
			SUM(CASE WHEN a.status = 'succeeded' THEN 1 ELSE 0 END) AS jobs_succeeded,
			SUM(CASE WHEN a.status = 'failed' THEN 1 ELSE 0 END) AS jobs_failed
		 FROM job_attempts a
		 JOIN jobs j ON j.job_id = a.job_id
		 WHERE a.started_at >= ? AND a.started_at < ?
		 GROUP BY a.profile_id, j.prompt_id
		 ORDER BY jobs_total DESC, a.profile_id ASC, j.prompt_id ASC
		 LIMIT ? OFFSET ?`,
		r.From, r.To, r.Limit, r.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("reports: profiles usage: %w", err)
	}
	defer rows.Close()

	var out []ProfileUsage
	for rows.Next() {
		var u ProfileUsage
		if err := rows.Scan(&u.ProfileID, &u.PromptID, &u.JobsTotal, &u.JobsSucceeded, &u.JobsFailed); err != nil {
			return nil, fmt.Errorf("reports: scan profile usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// PromptsUsage aggregates jobs by prompt_id (preferring selected_prompt_id when
// a candidate resolved one) over [r.From, r.To).
func (rp *Reporter) PromptsUsage(r Range) ([]PromptUsage, error) {
	r = r.normalized()
	rows, err := rp.db.Query(
		`SELECT
			COALESCE(selected_prompt_id, prompt_id) AS prompt_id,
			COUNT(*) AS jobs_total,
			SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END) AS jobs_succeeded,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS jobs_failed
		 FROM jobs
		 WHERE started_at >= ? AND started_at < ?
		 GROUP BY COALESCE(selected_prompt_id, prompt_id)
		 ORDER BY jobs_total DESC, prompt_id ASC
		 LIMIT ? OFFSET ?`,
		r.From, r.To, r.Limit, r.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("reports: prompts usage: %w", err)
	}
	defer rows.Close()

	var out []PromptUsage
	for rows.Next() {
		var u PromptUsage
		if err := rows.Scan(&u.PromptID, &u.JobsTotal, &u.JobsSucceeded, &u.JobsFailed); err != nil {
			return nil, fmt.Errorf("reports: scan prompt usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
