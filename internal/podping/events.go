package podping

import (
	"sort"
	"time"
)

// Known payload versions.
const (
	Version03      = "0.3"
	Version10      = "1.0"
	VersionUnknown = "unknown"
)

// Reason classifies why a notification was sent.
type Reason string

const (
	ReasonUpdate  Reason = "update"
	ReasonLive    Reason = "live"
	ReasonLiveEnd Reason = "liveEnd"
	ReasonInvalid Reason = "invalid"
)

func parseReason(s string) Reason {
	switch Reason(s) {
	case ReasonUpdate, ReasonLive, ReasonLiveEnd:
		return Reason(s)
	default:
		return ReasonInvalid
	}
}

// Medium is the content type of the updated feed. Legacy payloads carry
// MediumUnspecified.
type Medium string

const (
	MediumUnspecified Medium = ""
	MediumPodcast     Medium = "podcast"
	MediumAudiobook   Medium = "audiobook"
	MediumBlog        Medium = "blog"
	MediumFilm        Medium = "film"
	MediumMusic       Medium = "music"
	MediumNewsletter  Medium = "newsletter"
	MediumVideo       Medium = "video"
	MediumInvalid     Medium = "invalid"
)

func parseMedium(s string) Medium {
	switch Medium(s) {
	case MediumPodcast, MediumAudiobook, MediumBlog, MediumFilm,
		MediumMusic, MediumNewsletter, MediumVideo:
		return Medium(s)
	default:
		return MediumInvalid
	}
}

// TxContext is the transaction context an operation was observed in. It is
// copied into the decoded event untouched.
type TxContext struct {
	Timestamp     time.Time `json:"timestamp"`
	BlockNumber   uint64    `json:"block_number"`
	TransactionID string    `json:"transaction_id"`
}

// CandidateMessage is one custom_json operation that may carry a podping.
type CandidateMessage struct {
	CustomJSONID         string
	RawJSON              string
	RequiredPostingAuths []string
	TxContext
}

// PodpingEvent is the normalised form of every accepted payload version.
type PodpingEvent struct {
	Version string   `json:"version"`
	Reason  Reason   `json:"reason"`
	Medium  Medium   `json:"medium,omitempty"`
	URLs    []string `json:"urls"`
	TxContext
}

// AccountSet is an immutable snapshot of accounts trusted to post podpings.
// The zero value is an empty set.
type AccountSet struct {
	members map[string]struct{}
}

// NewAccountSet builds a snapshot from names. Empty names are ignored.
func NewAccountSet(names ...string) AccountSet {
	members := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		members[n] = struct{}{}
	}
	return AccountSet{members: members}
}

// Contains reports whether name is trusted.
func (s AccountSet) Contains(name string) bool {
	_, ok := s.members[name]
	return ok
}

// Len returns the number of trusted accounts.
func (s AccountSet) Len() int {
	return len(s.members)
}

// Names returns the trusted accounts in sorted order.
func (s AccountSet) Names() []string {
	out := make([]string, 0, len(s.members))
	for n := range s.members {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Intersects reports whether any of names is trusted.
func (s AccountSet) Intersects(names []string) bool {
	for _, n := range names {
		if s.Contains(n) {
			return true
		}
	}
	return false
}
