package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chora/internal/entity"
	"github.com/roach88/chora/internal/notify"
)

// Create validates and persists a new entity. On success the returned
// entity carries version 1 and store-assigned timestamps. Fails with
// DUPLICATE_ID if the id already exists, or a validation failure
// otherwise. Nothing is persisted on failure.
func (s *Store) Create(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	if err := s.validator.Validate(e); err != nil {
		return entity.Entity{}, err
	}

	now := s.now()
	stored := e.Clone()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now

	dataJSON, err := entity.MarshalData(stored.Data)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("create %s: %w", e.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("create %s: begin tx: %w", e.ID, err)
	}
	defer tx.Rollback() // No-op if committed

	// Uniqueness probe inside the transaction; the primary key would also
	// reject the insert, but the probe yields a typed failure instead of a
	// driver error.
	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities WHERE id = ?", stored.ID,
	).Scan(&count); err != nil {
		return entity.Entity{}, fmt.Errorf("create %s: probe: %w", e.ID, err)
	}
	if count > 0 {
		return entity.Entity{}, entity.NewDuplicateIDError(stored.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, type, status, data, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		stored.ID,
		stored.Type,
		stored.Status,
		dataJSON,
		stored.Version,
		formatTime(stored.CreatedAt),
		formatTime(stored.UpdatedAt),
	)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("create %s: insert: %w", e.ID, err)
	}

	if err := logChange(ctx, tx, stored, "create"); err != nil {
		return entity.Entity{}, fmt.Errorf("create %s: %w", e.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return entity.Entity{}, fmt.Errorf("create %s: commit: %w", e.ID, err)
	}

	s.emit("create", notify.Event{
		Type:       notify.Created,
		EntityID:   stored.ID,
		EntityType: stored.Type,
		Entity:     &stored,
		NewStatus:  stored.Status,
	})

	return stored, nil
}

// Update validates and persists a full replacement of an existing entity.
//
// Strict mode (the default): the caller's Version field is the expected
// stored version; a mismatch fails with VERSION_CONFLICT and persists
// nothing. Relaxed mode (WithRelaxedVersioning) ignores the caller's
// version and overwrites the stored row (last write wins).
//
// Either way, the new stored version is current+1 and updated_at is
// refreshed. Fails with NOT_FOUND if the id does not exist.
func (s *Store) Update(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	if err := s.validator.Validate(e); err != nil {
		return entity.Entity{}, err
	}

	dataJSON, err := entity.MarshalData(e.Data)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("update %s: %w", e.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("update %s: begin tx: %w", e.ID, err)
	}
	defer tx.Rollback()

	current, ok, err := readTx(ctx, tx, e.ID)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("update %s: %w", e.ID, err)
	}
	if !ok {
		return entity.Entity{}, entity.NewNotFoundError(e.ID)
	}
	if !s.relaxed && e.Version != current.Version {
		return entity.Entity{}, entity.NewVersionConflictError(e.ID, e.Version, current.Version)
	}

	now := s.now()
	stored := e.Clone()
	stored.Version = current.Version + 1
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = now

	// The version guard in the WHERE clause is redundant with the read
	// above (same transaction) but keeps the statement safe to copy.
	res, err := tx.ExecContext(ctx, `
		UPDATE entities
		SET status = ?, data = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		stored.Status,
		dataJSON,
		stored.Version,
		formatTime(stored.UpdatedAt),
		stored.ID,
		current.Version,
	)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("update %s: exec: %w", e.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return entity.Entity{}, fmt.Errorf("update %s: rows affected: %w", e.ID, err)
	}
	if affected == 0 {
		return entity.Entity{}, entity.NewVersionConflictError(e.ID, e.Version, current.Version)
	}

	if err := logChange(ctx, tx, stored, "update"); err != nil {
		return entity.Entity{}, fmt.Errorf("update %s: %w", e.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return entity.Entity{}, fmt.Errorf("update %s: commit: %w", e.ID, err)
	}

	s.emit("update", notify.Event{
		Type:       notify.Updated,
		EntityID:   stored.ID,
		EntityType: stored.Type,
		Entity:     &stored,
		Old:        &current,
		OldStatus:  current.Status,
		NewStatus:  stored.Status,
	})

	return stored, nil
}

// Delete removes an entity, returning whether it existed. A delete record
// with a full snapshot is appended to the change log before the row goes;
// no tombstone remains in the entities table (see the package doc for the
// sync implication).
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete %s: begin tx: %w", id, err)
	}
	defer tx.Rollback()

	current, ok, err := readTx(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}

	logged := current
	logged.Version = current.Version + 1
	logged.UpdatedAt = s.now()
	if err := logChange(ctx, tx, logged, "delete"); err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("delete %s: exec: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete %s: commit: %w", id, err)
	}

	s.emit("delete", notify.Event{
		Type:       notify.Deleted,
		EntityID:   current.ID,
		EntityType: current.Type,
		Old:        &current,
		OldStatus:  current.Status,
	})

	return true, nil
}

// ApplyMerge persists a sync-resolved entity, creating or replacing the
// row as needed. Unlike Create/Update, the winner's version and created_at
// are preserved so both replicas converge on identical rows; updated_at is
// refreshed like any other accepted write. Validation runs with the same
// rules as a local write. Events carry the merge-origin flag.
func (s *Store) ApplyMerge(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	if err := s.validator.Validate(e); err != nil {
		return entity.Entity{}, err
	}
	if e.Version < 1 {
		return entity.Entity{}, fmt.Errorf("apply merge %s: version %d not yet stored", e.ID, e.Version)
	}

	dataJSON, err := entity.MarshalData(e.Data)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("apply merge %s: %w", e.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("apply merge %s: begin tx: %w", e.ID, err)
	}
	defer tx.Rollback()

	current, existed, err := readTx(ctx, tx, e.ID)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("apply merge %s: %w", e.ID, err)
	}

	stored := e.Clone()
	stored.UpdatedAt = s.now()

	changeType := "update"
	if existed {
		_, err = tx.ExecContext(ctx, `
			UPDATE entities
			SET status = ?, data = ?, version = ?, created_at = ?, updated_at = ?
			WHERE id = ?
		`,
			stored.Status,
			dataJSON,
			stored.Version,
			formatTime(stored.CreatedAt),
			formatTime(stored.UpdatedAt),
			stored.ID,
		)
	} else {
		changeType = "create"
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entities (id, type, status, data, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			stored.ID,
			stored.Type,
			stored.Status,
			dataJSON,
			stored.Version,
			formatTime(stored.CreatedAt),
			formatTime(stored.UpdatedAt),
		)
	}
	if err != nil {
		return entity.Entity{}, fmt.Errorf("apply merge %s: exec: %w", e.ID, err)
	}

	if err := logChange(ctx, tx, stored, changeType); err != nil {
		return entity.Entity{}, fmt.Errorf("apply merge %s: %w", e.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return entity.Entity{}, fmt.Errorf("apply merge %s: commit: %w", e.ID, err)
	}

	ev := notify.Event{
		EntityID:    stored.ID,
		EntityType:  stored.Type,
		Entity:      &stored,
		NewStatus:   stored.Status,
		MergeOrigin: true,
	}
	if existed {
		ev.Type = notify.Updated
		ev.Old = &current
		ev.OldStatus = current.Status
	} else {
		ev.Type = notify.Created
	}
	s.emit("merge", ev)

	return stored, nil
}

// readTx fetches one entity inside an open transaction.
func readTx(ctx context.Context, tx *sql.Tx, id string) (entity.Entity, bool, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Entity{}, false, nil
	}
	if err != nil {
		return entity.Entity{}, false, err
	}
	return e, true, nil
}

// logChange appends a change-log row carrying a full snapshot. seq is
// assigned by SQLite (AUTOINCREMENT) and serves as a monotonic logical
// clock.
func logChange(ctx context.Context, tx *sql.Tx, e entity.Entity, changeType string) error {
	snapshot, err := marshalSnapshot(e)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entity_changes (entity_id, version, change_type, changed_at, snapshot)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Version,
		changeType,
		formatTime(e.UpdatedAt),
		snapshot,
	)
	if err != nil {
		return fmt.Errorf("log change: %w", err)
	}
	return nil
}
