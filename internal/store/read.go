package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/chora/internal/entity"
)

// Read fetches one entity by id. Absence is not an error: the second
// return value reports whether the entity exists.
func (s *Store) Read(ctx context.Context, id string) (entity.Entity, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Entity{}, false, nil
	}
	if err != nil {
		return entity.Entity{}, false, fmt.Errorf("read %s: %w", id, err)
	}
	return e, true, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type   string
	Status string
}

// List returns entities matching the filter, ordered by created_at
// ascending with id as a deterministic tiebreak. limit <= 0 means no
// limit; offset applies to the ordered sequence. The window is stable only
// if no writes land between pages.
func (s *Store) List(ctx context.Context, f Filter, limit, offset int) ([]entity.Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE 1=1"
	var args []any

	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, f.Type)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}

	query += " ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?"
	if limit <= 0 {
		limit = -1 // SQLite: negative limit means unbounded
	}
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// Search runs a full-text query over the derived FTS index, ordered by
// BM25 relevance with updated_at descending as the tiebreak. limit <= 0
// means no limit. The query string supports FTS5 syntax (AND, OR, NOT,
// "phrase").
func (s *Store) Search(ctx context.Context, query string, limit int) ([]entity.Entity, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("e")+`
		FROM entities e
		JOIN entities_fts fts ON e.rowid = fts.rowid
		WHERE entities_fts MATCH ?
		ORDER BY rank, e.updated_at DESC
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// IDs returns every entity id in lexical order. The sync engine uses this
// to compute the symmetric difference between two stores.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM entities ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list ids: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	return ids, nil
}

// Change is one change-log record. Snapshot is the full entity value as of
// the change; for deletes it carries the removed entity at version+1.
type Change struct {
	Seq       int64
	EntityID  string
	Version   int64
	Type      string // create, update, delete
	ChangedAt time.Time
	Snapshot  entity.Entity
}

// ChangesSince returns change-log records with seq strictly greater than
// afterSeq, in seq order. Pass 0 for the full history. Delete records
// survive removal of the entity row.
func (s *Store) ChangesSince(ctx context.Context, afterSeq int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, entity_id, version, change_type, changed_at, snapshot
		FROM entity_changes
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("changes since %d: %w", afterSeq, err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var (
			c        Change
			changed  string
			snapshot string
		)
		if err := rows.Scan(&c.Seq, &c.EntityID, &c.Version, &c.Type, &changed, &snapshot); err != nil {
			return nil, fmt.Errorf("changes since %d: scan: %w", afterSeq, err)
		}
		if c.ChangedAt, err = parseTime(changed); err != nil {
			return nil, fmt.Errorf("changes since %d: %w", afterSeq, err)
		}
		if c.Snapshot, err = unmarshalSnapshot(snapshot); err != nil {
			return nil, fmt.Errorf("changes since %d: %w", afterSeq, err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("changes since %d: %w", afterSeq, err)
	}
	return changes, nil
}

// LastChangeSeq returns the highest change-log seq, 0 when empty.
func (s *Store) LastChangeSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM entity_changes").Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last change seq: %w", err)
	}
	return seq.Int64, nil
}

func collectEntities(rows *sql.Rows) ([]entity.Entity, error) {
	entities := []entity.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entities: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// prefixColumns qualifies the canonical select list with a table alias.
func prefixColumns(alias string) string {
	return alias + ".id, " + alias + ".type, " + alias + ".status, " +
		alias + ".data, " + alias + ".version, " +
		alias + ".created_at, " + alias + ".updated_at"
}
