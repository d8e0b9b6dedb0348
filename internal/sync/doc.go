// Package sync reconciles two independently-writable entity stores
// ("sites") without a central coordinator.
//
// One SyncWith call performs exactly one pairwise pass: ids present on a
// single side are adopted verbatim by the other, ids with identical
// version and content are left alone, and genuine divergence goes through
// the configured conflict resolver. Resolver output is re-validated with
// the same rules as any local write before it lands on either side; an
// output that fails validation quarantines that one id in the pending
// queue and the pass continues.
//
// Causality tracking is the minimal viable scheme: version + updated_at +
// site id (lexical order breaks timestamp ties deterministically). There
// are no version vectors and no tombstones; a delete unseen by the peer
// comes back as a one-sided adopt, which is a documented gap of the data
// model, not of this package.
//
// The pass holds no cross-store lock; a local write racing an in-flight
// pass can be overwritten by its resolution or vice versa. Scheduling and
// multi-site topologies belong to the caller.
package sync
