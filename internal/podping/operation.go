package podping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyRecord is returned for a blank operation record.
	ErrEmptyRecord = errors.New("empty operation record")
	// ErrNotCustomJSON is returned for operations of any other type.
	ErrNotCustomJSON = errors.New("operation is not custom_json")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
}

// opRecord covers the flattened stream record and the applied-operation
// wrapper that nests the operation under "op".
type opRecord struct {
	customJSONBody
	TrxID     string          `json:"trx_id"`
	BlockNum  uint64          `json:"block_num"`
	Block     uint64          `json:"block"`
	Timestamp string          `json:"timestamp"`
	Op        json.RawMessage `json:"op"`
}

type customJSONBody struct {
	ID                   string          `json:"id"`
	JSON                 json.RawMessage `json:"json"`
	RequiredPostingAuths []string        `json:"required_posting_auths"`
}

// ParseOperation reads a custom_json operation record into a
// CandidateMessage. Accepted shapes are the flattened record
// {"id","json","required_posting_auths","trx_id","block_num","timestamp"},
// the tuple ["custom_json", {...}], and a wrapper whose "op" field holds
// either the tuple or {"type":"custom_json_operation","value":{...}}.
func ParseOperation(raw []byte) (CandidateMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return CandidateMessage{}, ErrEmptyRecord
	}

	if raw[0] == '[' {
		body, err := parseOp(raw)
		if err != nil {
			return CandidateMessage{}, err
		}
		return body.candidate(TxContext{})
	}

	var rec opRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CandidateMessage{}, fmt.Errorf("decode operation record: %w", err)
	}

	body := rec.customJSONBody
	if len(rec.Op) > 0 && string(rec.Op) != "null" {
		nested, err := parseOp(rec.Op)
		if err != nil {
			return CandidateMessage{}, err
		}
		body = nested
	}

	tx := TxContext{
		Timestamp:     parseTimestamp(rec.Timestamp),
		BlockNumber:   rec.BlockNum,
		TransactionID: rec.TrxID,
	}
	if tx.BlockNumber == 0 {
		tx.BlockNumber = rec.Block
	}
	return body.candidate(tx)
}

func parseOp(raw json.RawMessage) (customJSONBody, error) {
	var (
		opType string
		body   customJSONBody
	)
	if raw[0] == '[' {
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil {
			return body, fmt.Errorf("decode operation tuple: %w", err)
		}
		if len(tuple) != 2 {
			return body, fmt.Errorf("operation tuple has %d elements", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], &opType); err != nil {
			return body, fmt.Errorf("decode operation type: %w", err)
		}
		if opType != "custom_json" {
			return body, ErrNotCustomJSON
		}
		if err := json.Unmarshal(tuple[1], &body); err != nil {
			return body, fmt.Errorf("decode custom_json body: %w", err)
		}
		return body, nil
	}

	var typed struct {
		Type  string         `json:"type"`
		Value customJSONBody `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err != nil {
		return body, fmt.Errorf("decode typed operation: %w", err)
	}
	if typed.Type != "custom_json_operation" && typed.Type != "custom_json" {
		return body, ErrNotCustomJSON
	}
	return typed.Value, nil
}

func (b customJSONBody) candidate(tx TxContext) (CandidateMessage, error) {
	if b.ID == "" {
		return CandidateMessage{}, ErrNotCustomJSON
	}
	return CandidateMessage{
		CustomJSONID:         b.ID,
		RawJSON:              payloadText(b.JSON),
		RequiredPostingAuths: b.RequiredPostingAuths,
		TxContext:            tx,
	}, nil
}

// payloadText unwraps the usual string-encoded payload. Streamers that
// pre-decode the payload hand over the object itself.
func payloadText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
