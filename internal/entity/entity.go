package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// IDSeparator joins the type prefix and the slug in a semantic ID,
// e.g. "feature-voice-canvas".
const IDSeparator = "-"

// Entity is a typed, versioned, schema-governed record.
//
// Version semantics: 0 means "not yet stored". The store assigns 1 on the
// first successful create and current+1 on every accepted update. Callers
// never choose the stored version.
type Entity struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New returns an unstored entity (Version 0, zero timestamps).
// The store assigns version and timestamps at create time.
func New(id, typ, status string, data map[string]any) Entity {
	if data == nil {
		data = map[string]any{}
	}
	return Entity{ID: id, Type: typ, Status: status, Data: data}
}

// TypePrefix returns the portion of the ID up to the first separator.
// Empty when the ID carries no separator.
func (e Entity) TypePrefix() string {
	idx := strings.Index(e.ID, IDSeparator)
	if idx < 0 {
		return ""
	}
	return e.ID[:idx]
}

// Name returns the human-readable name from Data, falling back to the ID.
func (e Entity) Name() string {
	if n, ok := e.Data["name"].(string); ok && n != "" {
		return n
	}
	return e.ID
}

// Clone returns a copy with its own Data map. Values inside Data are
// shared; callers replacing nested structures must supply fresh ones.
func (e Entity) Clone() Entity {
	out := e
	out.Data = make(map[string]any, len(e.Data))
	for k, v := range e.Data {
		out.Data[k] = v
	}
	return out
}

// WithStatus returns a copy with the given status.
func (e Entity) WithStatus(status string) Entity {
	out := e.Clone()
	out.Status = status
	return out
}

// WithData returns a copy whose Data is replaced wholesale.
func (e Entity) WithData(data map[string]any) Entity {
	out := e
	out.Data = make(map[string]any, len(data))
	for k, v := range data {
		out.Data[k] = v
	}
	return out
}

// WithField returns a copy with a single Data key set.
func (e Entity) WithField(key string, value any) Entity {
	out := e.Clone()
	out.Data[key] = value
	return out
}

// Equal reports whether two entities carry the same identity, version,
// status, and payload. Timestamps are deliberately excluded: the sync
// engine treats same-version, same-content replicas as already converged
// even when their server-assigned timestamps differ.
func (e Entity) Equal(other Entity) bool {
	if e.ID != other.ID || e.Type != other.Type || e.Status != other.Status || e.Version != other.Version {
		return false
	}
	a, err := MarshalData(e.Data)
	if err != nil {
		return false
	}
	b, err := MarshalData(other.Data)
	if err != nil {
		return false
	}
	return a == b
}

// MarshalData serializes a Data payload to JSON TEXT for storage and
// comparison. Map keys are emitted in sorted order (encoding/json sorts
// map keys) and HTML escaping is disabled so stored text matches what a
// reader sees in the database.
func MarshalData(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// UnmarshalData parses stored JSON TEXT back into a Data payload.
func UnmarshalData(text string) (map[string]any, error) {
	if text == "" || text == "{}" {
		return map[string]any{}, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return data, nil
}
