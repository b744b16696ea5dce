// Package domain defines the types and ports of the audience pulse service
package domain

import (
	"strconv"
	"time"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/metrics"
	"audiencepulse/internal/core/pipeline"
)

// State is a job lifecycle state
type State string

// Job states
const (
	StateReceived    State = "received"
	StateDispatching State = "dispatching"
	StateCollecting  State = "collecting"
	StatePartial     State = "partial"
	StateAggregating State = "aggregating"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Building reports whether a job in s may be attached to
func (s State) Building() bool {
	switch s {
	case StateDispatching, StateCollecting, StatePartial, StateAggregating:
		return true
	}
	return false
}

// Status is the coarse status callers poll
type Status string

// Poll statuses
const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Status maps a state to its poll status
func (s State) Status() Status {
	switch s {
	case StateCompleted:
		return StatusCompleted
	case StateFailed:
		return StatusFailed
	}
	return StatusProcessing
}

// Mode is the caller's execution preference
type Mode string

// Execution modes
const (
	ModeAuto  Mode = "auto"
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// FailureCode classifies a failed job
type FailureCode string

// Job failure codes
const (
	FailInvalidInput            FailureCode = "InvalidInput"
	FailAllPlatformsUnavailable FailureCode = "AllPlatformsUnavailable"
	FailCancelled               FailureCode = "Cancelled"
	FailInternal                FailureCode = "Internal"
)

// Request is one analysis request
type Request struct {
	Links          []string `json:"links"`
	PostLimit      int      `json:"post_limit,omitempty"`
	CommentLimit   int      `json:"comment_limit,omitempty"`
	SentimentLimit int      `json:"sentiment_limit,omitempty"`
	Mode           Mode     `json:"mode,omitempty"`
}

// Limits returns the sampling limits requested for p
func (r Request) Limits(p links.Platform) content.Limits {
	return content.Limits{Posts: r.PostLimit, Comments: r.CommentLimit}.For(p)
}

// JobError is the failure of a job
type JobError struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"message"`
	// Transparency lists what each target did when no report could be built
	Transparency *Transparency `json:"transparency,omitempty"`
}

// Job is an analysis job snapshot
type Job struct {
	ID          string         `json:"job_id"`
	Status      Status         `json:"status"`
	State       State          `json:"state"`
	Fingerprint string         `json:"fingerprint"`
	Mode        Mode           `json:"mode"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Targets     []links.Target `json:"targets"`
	Request     Request        `json:"request"`
	Duplicates  []string       `json:"duplicates,omitempty"`
	Report      *Report        `json:"report,omitempty"`
	Error       *JobError      `json:"error,omitempty"`
}

// Clone returns a copy that shares no mutable slices with j.
// A report is immutable once attached so it is shared
func (j Job) Clone() Job {
	c := j
	c.Targets = append([]links.Target(nil), j.Targets...)
	c.Duplicates = append([]string(nil), j.Duplicates...)
	c.Request.Links = append([]string(nil), j.Request.Links...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return c
}

// Collection is one target's fetch outcome
type Collection struct {
	Target         links.Target    `json:"target"`
	Profile        content.Profile `json:"profile"`
	Limits         content.Limits  `json:"limits"`
	Items          []content.Item  `json:"items"`
	PostsTruncated bool            `json:"posts_truncated"`
	Err            *AdapterError   `json:"error,omitempty"`
	Attempts       int             `json:"attempts"`
	FromCache      bool            `json:"-"`
}

// OK reports whether the collection yielded data
func (c Collection) OK() bool { return c.Err == nil }

// Key is the cache key of the collection
func (c Collection) Key() string { return CollectionKey(c.Target, c.Limits) }

// CollectionKey keys a target's collection by its sampling limits, so a sample taken
// with smaller caps never answers for a larger one
func CollectionKey(t links.Target, l content.Limits) string {
	return t.Key() + "|" + strconv.Itoa(l.Posts) + "|" + strconv.Itoa(l.Comments)
}

// Target statuses in the transparency block
const (
	TargetOK      = "ok"
	TargetFailed  = "failed"
	TargetSkipped = "skipped"
)

// PlatformReport is the audience side of one collected target
type PlatformReport struct {
	Target      string `json:"target"`
	DisplayName string `json:"display_name"`
	metrics.Result
}

// TargetStatus is one target's entry in the transparency block
type TargetStatus struct {
	Target            string         `json:"target"`
	Platform          links.Platform `json:"platform"`
	Link              string         `json:"link"`
	Status            string         `json:"status"`
	ErrorKind         ErrorKind      `json:"error_kind,omitempty"`
	Message           string         `json:"message,omitempty"`
	PostsTruncated    bool           `json:"posts_truncated"`
	CommentsTruncated bool           `json:"comments_truncated"`
	Attempts          int            `json:"attempts"`
	FromCache         bool           `json:"from_cache"`
}

// Transparency lists everything skipped, truncated or failed
type Transparency struct {
	Partial         bool                    `json:"partial"`
	Targets         []TargetStatus          `json:"targets"`
	Duplicates      []string                `json:"duplicates,omitempty"`
	StageWarnings   []pipeline.StageWarning `json:"stage_warnings,omitempty"`
	Spam            pipeline.SpamStats      `json:"spam"`
	SentimentCapped bool                    `json:"sentiment_capped"`
	Cached          bool                    `json:"cached"`
}

// Report is the structured insight report
type Report struct {
	Fingerprint  string             `json:"fingerprint"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Platforms    []PlatformReport   `json:"platforms"`
	Summary      string             `json:"summary"`
	Sentiment    pipeline.Sentiment `json:"sentiment"`
	Keywords     []pipeline.Keyword `json:"keywords"`
	Clusters     []pipeline.Cluster `json:"clusters"`
	Transparency Transparency       `json:"transparency"`
}

// Event is one job state transition pushed to subscribers
type Event struct {
	JobID   string    `json:"job_id"`
	State   State     `json:"state"`
	Status  Status    `json:"status"`
	Target  string    `json:"target,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// JobNotification is delivered once per job reaching a terminal state
type JobNotification struct {
	JobID       string      `json:"job_id"`
	Fingerprint string      `json:"fingerprint"`
	Status      Status      `json:"status"`
	ErrorCode   FailureCode `json:"error_code,omitempty"`
}

// Outcome is what Analyze hands back to the transport
type Outcome struct {
	Job      Job
	Async    bool
	Attached bool
	Cached   bool
}
