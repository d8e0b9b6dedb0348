// Package entity defines the core record type and the error taxonomy
// shared by the validation engine, the store, and the sync engine.
//
// An Entity is an immutable value: mutation produces a new copy via the
// With* helpers, which is then passed through Store.Update. The Version
// field is the optimistic-concurrency token: 0 before the first persisted
// write, then incremented by exactly one on every accepted update.
//
// Timestamps are assigned by the store, never by the caller.
package entity
