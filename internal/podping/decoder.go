package podping

import (
	"encoding/json"
	"strings"
)

// Rejection names the class of input that produced no event.
type Rejection string

const (
	Accepted           Rejection = ""
	RejectNotPodping   Rejection = "not_podping"
	RejectUnauthorized Rejection = "unauthorized"
	RejectMalformed    Rejection = "malformed"
	RejectNoURLs       Rejection = "no_actionable_urls"
)

// Rejections lists every rejection class, for metric pre-registration.
var Rejections = []Rejection{RejectNotPodping, RejectUnauthorized, RejectMalformed, RejectNoURLs}

const (
	liveID       = "podping"
	livePrefix   = "pp_"
	testID       = "podping-livetest"
	testPrefix   = "pplt_"
	legacyReason = "feed_update"
)

// Field names are tried in order; the first one present wins.
var (
	versionFields = []string{"version", "v"}
	reasonFields  = []string{"reason", "r", "type"}
)

// Options tunes a Decoder.
type Options struct {
	// Livetest switches the identifier gate to the livetest id namespace.
	Livetest bool
}

// Decoder turns custom_json operations into PodpingEvents. It holds no
// mutable state and is safe for concurrent use.
type Decoder struct {
	id     string
	prefix string
}

// NewDecoder constructs a Decoder.
func NewDecoder(opts Options) *Decoder {
	if opts.Livetest {
		return &Decoder{id: testID, prefix: testPrefix}
	}
	return &Decoder{id: liveID, prefix: livePrefix}
}

// Decode returns the event carried by candidate, or false when the candidate
// is not an acceptable podping.
func (d *Decoder) Decode(candidate CandidateMessage, authorized AccountSet) (PodpingEvent, bool) {
	ev, rej := d.Classify(candidate, authorized)
	return ev, rej == Accepted
}

// Classify is Decode with the reason for rejection exposed.
func (d *Decoder) Classify(candidate CandidateMessage, authorized AccountSet) (PodpingEvent, Rejection) {
	if !d.acceptsID(candidate.CustomJSONID) {
		return PodpingEvent{}, RejectNotPodping
	}
	if !authorized.Intersects(candidate.RequiredPostingAuths) {
		return PodpingEvent{}, RejectUnauthorized
	}
	return d.ClassifyPayload(candidate.RawJSON, candidate.TxContext)
}

// DecodePayload decodes a bare payload whose identifier and poster were
// already vetted upstream.
func (d *Decoder) DecodePayload(rawJSON string, tx TxContext) (PodpingEvent, bool) {
	ev, rej := d.ClassifyPayload(rawJSON, tx)
	return ev, rej == Accepted
}

func (d *Decoder) acceptsID(id string) bool {
	return id == d.id || strings.HasPrefix(id, d.prefix)
}

// ClassifyPayload is DecodePayload with the reason for rejection exposed.
func (d *Decoder) ClassifyPayload(rawJSON string, tx TxContext) (PodpingEvent, Rejection) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rawJSON), &fields); err != nil || fields == nil {
		return PodpingEvent{}, RejectMalformed
	}

	version := VersionUnknown
	if v, ok := stringField(fields, versionFields...); ok && (v == Version10 || v == Version03) {
		version = v
	}

	var (
		reason Reason
		medium Medium
	)
	if version == Version10 {
		r, _ := stringField(fields, reasonFields...)
		m, _ := stringField(fields, "medium")
		reason, medium = parseReason(r), parseMedium(m)
		if reason == ReasonInvalid || medium == MediumInvalid {
			return PodpingEvent{}, RejectMalformed
		}
	} else {
		if !legacyUpdate(fields) {
			return PodpingEvent{}, RejectMalformed
		}
		reason, medium = ReasonUpdate, MediumUnspecified
	}

	urls := filterHTTP(collectURLs(fields))
	if len(urls) == 0 {
		return PodpingEvent{}, RejectNoURLs
	}

	return PodpingEvent{
		Version:   version,
		Reason:    reason,
		Medium:    medium,
		URLs:      urls,
		TxContext: tx,
	}, Accepted
}

// legacyUpdate accepts a missing reason, the "feed_update" literal or the
// numeric code 1.
func legacyUpdate(fields map[string]json.RawMessage) bool {
	raw, ok := lookup(fields, reasonFields...)
	if !ok {
		return true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s == legacyReason
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil {
		return n == 1
	}
	return false
}

// collectURLs applies the historical precedence: iris, then urls appended,
// and a singular url replacing both.
func collectURLs(fields map[string]json.RawMessage) []string {
	if url, ok := stringField(fields, "url"); ok {
		return []string{url}
	}
	var out []string
	if raw, ok := lookup(fields, "iris"); ok {
		out = append(out, stringList(raw)...)
	}
	if raw, ok := lookup(fields, "urls"); ok {
		out = append(out, stringList(raw)...)
	}
	return out
}

func filterHTTP(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if hasPrefixFold(u, "http://") || hasPrefixFold(u, "https://") {
			out = append(out, u)
		}
	}
	return out
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// lookup returns the first of keys that is present and not null.
func lookup(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || string(raw) == "null" {
			continue
		}
		return raw, true
	}
	return nil, false
}

func stringField(fields map[string]json.RawMessage, keys ...string) (string, bool) {
	raw, ok := lookup(fields, keys...)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// stringList keeps the string elements of a JSON array. Anything else
// yields nil.
func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}
