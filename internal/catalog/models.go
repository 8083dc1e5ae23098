package catalog

import (
	"strings"
	"time"
)

// Status represents the publication state of a contribution.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusFlagged   Status = "flagged"
)

var statusSet = map[Status]struct{}{
	StatusDraft:     {},
	StatusPublished: {},
	StatusFlagged:   {},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ContributionType classifies the artifact kind of a contribution.
type ContributionType string

const (
	TypeText     ContributionType = "text"
	TypeAudio    ContributionType = "audio"
	TypeImage    ContributionType = "image"
	TypeDocument ContributionType = "document"
)

var typeSet = map[ContributionType]struct{}{
	TypeText:     {},
	TypeAudio:    {},
	TypeImage:    {},
	TypeDocument: {},
}

// ParseType converts a string into a known ContributionType.
func ParseType(value string) (ContributionType, bool) {
	normalized := ContributionType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := typeSet[normalized]
	return normalized, ok
}

// Contribution is a community-submitted artifact persisted in the catalog.
// ContentRef is immutable after creation; retries of a failed upload store
// a fresh object and insert a fresh row rather than rewriting this one.
type Contribution struct {
	ID            int64
	Type          ContributionType
	Title         string
	Body          string
	LanguageCode  string
	Region        string
	Category      string
	Tags          []string
	ContentRef    string
	Size          int64
	ContentType   string
	ContributorID int64
	LikesCount    int64
	Status        Status
	CreatedAt     time.Time
}

// Filters describes a catalog query. Zero-valued fields are wildcards; every
// supplied field must match (conjunction). SearchText matches title, body,
// or any tag, case-insensitively.
type Filters struct {
	Language   string
	Category   string
	Region     string
	SearchText string
	Limit      int
}

// Bucket is one usage_analytics row: per-day, per-language aggregate
// counters. Rows for closed days are never mutated, only read.
type Bucket struct {
	Date               time.Time
	LanguageCode       string
	ConversationsCount int64
	NewUsersCount      int64
	ContributionsCount int64
}

// BucketDelta is an increment applied to a day's bucket.
type BucketDelta struct {
	Conversations int64
	NewUsers      int64
	Contributions int64
}

// ConversationLog captures the metadata the core records per assistant
// exchange. The assistant's behavior is otherwise opaque to the pipeline.
type ConversationLog struct {
	ID           int64
	LanguageCode string
	MessageCount int
	StartedAt    time.Time
	LastActivity time.Time
}
