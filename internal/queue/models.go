package queue

import (
	"strings"
	"time"

	"mediaconv/internal/gallery"
)

// Kind identifies the derivative a conversion item produces.
type Kind string

const (
	KindCreateOptimized Kind = "create_optimized"
	KindRotateOriginal  Kind = "rotate_original"
)

var allKinds = []Kind{KindCreateOptimized, KindRotateOriginal}

// Kinds returns every known conversion kind.
func Kinds() []Kind {
	return append([]Kind(nil), allKinds...)
}

// ParseKind validates a kind string.
func ParseKind(value string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(value)))
	return k, k.Valid()
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Status represents the lifecycle of a conversion item.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var allStatuses = []Status{StatusWaiting, StatusProcessing, StatusCompleted, StatusError}

// AllStatuses returns statuses in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allStatuses {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// Active reports whether the status blocks a second item for the same pair.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusProcessing
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Item is a snapshot of one unit of conversion work.
type Item struct {
	ID            string
	AssetID       int64
	Kind          Kind
	Status        Status
	StatusDetail  string
	ErrorKind     string
	Rotation      gallery.RotateFlip
	Attempt       int
	EnqueuedAt    time.Time
	StartedAt     time.Time
	CompletedAt   time.Time
	LastHeartbeat time.Time
}

// Request describes work submitted to Enqueue.
type Request struct {
	AssetID  int64
	Kind     Kind
	Rotation gallery.RotateFlip
}

// Claim is proof that the holder moved an item to processing. Only the holder
// of the current claim may heartbeat, complete or fail the item.
type Claim struct {
	Item  Item
	token string
}

// Token returns the opaque claim token.
func (c *Claim) Token() string {
	if c == nil {
		return ""
	}
	return c.token
}

// Stats counts items by status.
type Stats struct {
	Waiting    int
	Processing int
	Completed  int
	Error      int
}

// Total returns the number of items tracked, including history.
func (s Stats) Total() int {
	return s.Waiting + s.Processing + s.Completed + s.Error
}

// ByStatus returns the counts keyed by status.
func (s Stats) ByStatus() map[Status]int {
	return map[Status]int{
		StatusWaiting:    s.Waiting,
		StatusProcessing: s.Processing,
		StatusCompleted:  s.Completed,
		StatusError:      s.Error,
	}
}
