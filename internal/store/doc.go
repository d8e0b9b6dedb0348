// Package store provides SQLite-backed durable storage for schema-governed
// entities.
//
// The store owns:
//   - Version assignment: 1 on create, stored+1 on every accepted update.
//   - Uniqueness: entities are keyed by id (primary key), re-checked with a
//     probe inside the create transaction.
//   - Timestamps: created_at fixed at creation, updated_at refreshed on
//     every accepted write, including merge-applied writes.
//   - The change log: an append-only record of every create/update/delete,
//     ordered by a monotonic seq column (logical clock; ordering never
//     relies on wall time), retaining delete records after the row is gone.
//
// Every operation validates through the validation engine before touching
// the database, and the generated DDL duplicates the type/status/id-shape
// invariants as CHECK constraints, so even raw SQL against the file
// cannot persist an out-of-schema entity.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes, and a log suitable for an
//     external continuous-replication consumer
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Deletion is hard removal with no tombstone in the entities table. A
// delete on one replica that the peer has not seen resurrects during sync
// as a one-sided adopt; this is a known gap, recorded here rather than
// papered over (the change log keeps the delete record for external
// consumers, but the sync pass does not consume it).
package store
