package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/chora/internal/entity"
)

// timeLayout is RFC 3339 with a fixed-width 9-digit fraction. Fixed width
// keeps lexicographic TEXT comparison in SQL consistent with chronological
// order (RFC3339Nano trims trailing zeros, which breaks string ordering).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// entityColumns is the canonical select list; every entity query uses it
// so scanEntity stays in lockstep with the schema.
const entityColumns = "id, type, status, data, version, created_at, updated_at"

func scanEntity(row rowScanner) (entity.Entity, error) {
	var (
		e        entity.Entity
		dataJSON string
		created  string
		updated  string
	)
	if err := row.Scan(&e.ID, &e.Type, &e.Status, &dataJSON, &e.Version, &created, &updated); err != nil {
		return entity.Entity{}, err
	}

	data, err := entity.UnmarshalData(dataJSON)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("scan entity %s: %w", e.ID, err)
	}
	e.Data = data

	if e.CreatedAt, err = parseTime(created); err != nil {
		return entity.Entity{}, fmt.Errorf("scan entity %s: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return entity.Entity{}, fmt.Errorf("scan entity %s: %w", e.ID, err)
	}
	return e, nil
}

// marshalSnapshot serializes a full entity for the change log. HTML
// escaping is disabled so the stored text matches what a reader sees.
func marshalSnapshot(e entity.Entity) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalSnapshot(text string) (entity.Entity, error) {
	var e entity.Entity
	if err := json.Unmarshal([]byte(text), &e); err != nil {
		return entity.Entity{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	return e, nil
}
