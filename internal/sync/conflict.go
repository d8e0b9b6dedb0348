package sync

import (
	"fmt"

	"github.com/roach88/chora/internal/entity"
)

// Resolution states how a conflict was settled.
type Resolution string

const (
	LocalWins  Resolution = "local_wins"
	RemoteWins Resolution = "remote_wins"
	Merged     Resolution = "merged"
	Deferred   Resolution = "deferred"
	Skipped    Resolution = "skipped"
)

// Conflict is one entity that diverged on both sites since their last
// common state: same id, differing version or content.
type Conflict struct {
	EntityID     string
	Local        entity.Entity
	Remote       entity.Entity
	LocalSiteID  string
	RemoteSiteID string
}

func (c Conflict) String() string {
	return fmt.Sprintf("conflict(%s: local v%d vs remote v%d)",
		c.EntityID, c.Local.Version, c.Remote.Version)
}

// Result is a resolver's decision. Resolved is nil for Deferred and
// Skipped; otherwise it is the entity to write to both sides, still
// subject to validation.
type Result struct {
	Conflict   Conflict
	Resolution Resolution
	Resolved   *entity.Entity
	Message    string
}

// Resolver decides the outcome of a single conflict. Implementations must
// be deterministic for a given conflict: repeated passes over the same
// divergence converge only if the resolver always picks the same winner.
type Resolver interface {
	Resolve(Conflict) Result
}

// PendingConflict is a conflict parked for manual resolution, either by
// the Defer resolver or by quarantine after a resolver output failed
// validation.
type PendingConflict struct {
	Conflict Conflict
	Reason   string
}

// Queue collects pending conflicts across sync passes, deduplicated by
// entity id (a re-evaluated conflict replaces its older entry). Not safe
// for concurrent use; sync passes are single-threaded by design.
type Queue struct {
	pending  []PendingConflict
	resolved []Result
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add parks a conflict, replacing any existing entry for the same entity.
func (q *Queue) Add(c Conflict, reason string) {
	for i, p := range q.pending {
		if p.Conflict.EntityID == c.EntityID {
			q.pending[i] = PendingConflict{Conflict: c, Reason: reason}
			return
		}
	}
	q.pending = append(q.pending, PendingConflict{Conflict: c, Reason: reason})
}

// Pending returns the parked conflicts in arrival order.
func (q *Queue) Pending() []PendingConflict {
	out := make([]PendingConflict, len(q.pending))
	copy(out, q.pending)
	return out
}

// Len returns the number of parked conflicts.
func (q *Queue) Len() int {
	return len(q.pending)
}

// MarkResolved removes an entity's parked conflict and records the manual
// outcome. Returns false when the entity has no parked conflict.
func (q *Queue) MarkResolved(entityID string, res Result) bool {
	for i, p := range q.pending {
		if p.Conflict.EntityID == entityID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.resolved = append(q.resolved, res)
			return true
		}
	}
	return false
}

// Resolved returns the manual-resolution history.
func (q *Queue) Resolved() []Result {
	out := make([]Result, len(q.resolved))
	copy(out, q.resolved)
	return out
}

// Clear drops all parked conflicts and history.
func (q *Queue) Clear() {
	q.pending = nil
	q.resolved = nil
}
