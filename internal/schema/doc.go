// Package schema loads the externally supplied type schema and exposes it
// as a read-only Registry.
//
// The schema source is a YAML document enumerating, per entity type, the
// valid lifecycle statuses, an optional default status, and the required
// data fields. The document is structurally validated against an embedded
// CUE definition before decoding, so a malformed source fails at Registry
// construction, never later during validation of a write.
//
// The Registry is immutable for the lifetime of the process; there is no
// hot-reload.
package schema
