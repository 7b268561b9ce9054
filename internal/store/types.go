package store

// Socks is a named SOCKS proxy endpoint (§3 Socks).
type Socks struct {
	SocksID   string
	URL       string
	CreatedAt string
	UpdatedAt string
}

// Profile is a logical browser-profile identity (§3 Profile).
type Profile struct {
	ProfileID         string
	ProfileValue      string
	DefaultSocksID    *string
	AllowedContainers []string
	MaxUses           *int
	UsesCount         int
	PendingReplace    bool
	CreatedAt         string
	UpdatedAt         string
}

// Chat session tag sentinels (§3 Invariant I1, I2).
const (
	TagGuest   = "guest"
	TagArchive = "archive"
)

// ChatSession is a durable record of one browser conversation (§3 ChatSession).
type ChatSession struct {
	ID          int64
	ContainerID string
	PromptID    string
	ProfileID   string
	SocksID     *string
	ChatID      *string
	PageURL     string
	UsesCount   int
	Disabled    bool
	Tag         *string
	LockedBy    *string
	LockedUntil *string
	CreatedAt   string
	UpdatedAt   string
}

// IsBlockedForReuse reports whether I1 forbids reusing this session.
func (c *ChatSession) IsBlockedForReuse() bool {
	if c.Disabled {
		return true
	}
	if c.ChatID != nil && (*c.ChatID == TagGuest || *c.ChatID == TagArchive) {
		return true
	}
	if c.Tag != nil && (*c.Tag == TagGuest || *c.Tag == TagArchive) {
		return true
	}
	return false
}

// IsGuest reports whether this session carries the profile-wide guest marker.
func (c *ChatSession) IsGuest() bool {
	if c.ChatID != nil && *c.ChatID == TagGuest {
		return true
	}
	if c.Tag != nil && *c.Tag == TagGuest {
		return true
	}
	return false
}

// Job status values (§3 Job, Invariant I4).
const (
	JobPending   = "pending"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Job is one row per client solve request (§3 Job).
type Job struct {
	JobID             string
	RequestID         string
	PromptID          string
	SelectedPromptID  *string
	DecisionMode      string
	FanoutRequested   int
	FanoutUsed        int
	ContainerIDsUsed  []string
	InputFingerprint  *string
	ProfileID         *string
	SocksID           *string
	Status            string
	ResultText        *string
	ResultRaw         *string
	ErrorCode         *string
	ErrorMessage      *string
	StartedAt         string
	FinishedAt        *string
}

// JobAttempt is one row per concrete upstream invocation inside a job (§3 JobAttempt).
type JobAttempt struct {
	ID            int64
	JobID         string
	ChatSessionID *int64
	ChatID        *string
	PageURL       *string
	ContainerID   string
	ProfileID     string
	SocksID       *string
	Status        string
	ResultText    *string
	ResultRaw     *string
	ErrorCode     *string
	ErrorMessage  *string
	StartedAt     string
	FinishedAt    *string
}
