package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/roach88/chora/internal/entity"
	"github.com/roach88/chora/internal/store"
	"github.com/roach88/chora/internal/validate"
)

// Syncer binds one store to a stable site identity and a conflict
// resolution policy.
type Syncer struct {
	store     *store.Store
	siteID    string
	resolver  Resolver
	queue     *Queue
	validator *validate.Validator
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithSiteID fixes the site identifier. Defaults to a random UUID; real
// deployments should pass something stable ("laptop-001") so timestamp
// ties break the same way across restarts.
func WithSiteID(id string) Option {
	return func(s *Syncer) { s.siteID = id }
}

// WithResolver sets the conflict resolution policy. Defaults to
// LastWriteWins.
func WithResolver(r Resolver) Option {
	return func(s *Syncer) { s.resolver = r }
}

// New returns a Syncer for the given store.
func New(st *store.Store, opts ...Option) *Syncer {
	s := &Syncer{
		store:     st,
		siteID:    uuid.NewString(),
		resolver:  LastWriteWins{},
		queue:     NewQueue(),
		validator: validate.New(st.Registry()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SiteID returns this site's identifier.
func (s *Syncer) SiteID() string { return s.siteID }

// Store returns the underlying entity store.
func (s *Syncer) Store() *store.Store { return s.store }

// Pending returns this site's parked conflicts.
func (s *Syncer) Pending() []PendingConflict { return s.queue.Pending() }

// Queue returns the pending-conflict queue for manual resolution flows.
func (s *Syncer) Queue() *Queue { return s.queue }

// Stats summarizes one sync pass.
type Stats struct {
	Adopted   int // ids present on one side only, copied verbatim
	Unchanged int // ids identical on both sides
	Resolved  int // conflicts settled and written to both sides
	Deferred  int // conflicts parked by the Defer resolver
	Failed    int // resolver outputs quarantined after validation failure
}

// SyncWith performs exactly one pairwise reconciliation between this site
// and remote. Merge writes go through each store's ApplyMerge and emit
// ordinary change events flagged as merge-origin. Per-entity validation
// failures are quarantined in the pending queue; substrate errors abort
// the pass.
func (s *Syncer) SyncWith(ctx context.Context, remote *Syncer) (Stats, error) {
	var stats Stats

	ids, err := unionIDs(ctx, s.store, remote.store)
	if err != nil {
		return stats, fmt.Errorf("sync %s<->%s: %w", s.siteID, remote.siteID, err)
	}

	for _, id := range ids {
		local, lok, err := s.store.Read(ctx, id)
		if err != nil {
			return stats, fmt.Errorf("sync %s<->%s: %w", s.siteID, remote.siteID, err)
		}
		rem, rok, err := remote.store.Read(ctx, id)
		if err != nil {
			return stats, fmt.Errorf("sync %s<->%s: %w", s.siteID, remote.siteID, err)
		}

		switch {
		case lok && !rok:
			// Present locally only: remote adopts verbatim. Not a conflict.
			if err := s.adopt(ctx, remote.store, local, s.siteID, remote.siteID, &stats); err != nil {
				return stats, err
			}
		case rok && !lok:
			if err := s.adopt(ctx, s.store, rem, remote.siteID, s.siteID, &stats); err != nil {
				return stats, err
			}
		case local.Equal(rem):
			stats.Unchanged++
		default:
			conflict := Conflict{
				EntityID:     id,
				Local:        local,
				Remote:       rem,
				LocalSiteID:  s.siteID,
				RemoteSiteID: remote.siteID,
			}
			if err := s.resolve(ctx, remote, conflict, &stats); err != nil {
				return stats, err
			}
		}
	}

	slog.Info("sync pass complete",
		"local_site", s.siteID,
		"remote_site", remote.siteID,
		"adopted", stats.Adopted,
		"unchanged", stats.Unchanged,
		"resolved", stats.Resolved,
		"deferred", stats.Deferred,
		"failed", stats.Failed,
	)
	return stats, nil
}

// adopt copies a one-sided entity from srcSite to the missing side.
func (s *Syncer) adopt(ctx context.Context, dst *store.Store, e entity.Entity, srcSite, dstSite string, stats *Stats) error {
	if _, err := dst.ApplyMerge(ctx, e); err != nil {
		if entity.IsValidation(err) {
			// The source side persisted something the destination's
			// registry rejects; quarantine rather than abort.
			s.queue.Add(Conflict{EntityID: e.ID, Local: e, Remote: e,
				LocalSiteID: srcSite, RemoteSiteID: dstSite},
				fmt.Sprintf("adopt rejected by validation: %v", err))
			stats.Failed++
			slog.Warn("adopt quarantined", "entity", e.ID, "error", err)
			return nil
		}
		return fmt.Errorf("adopt %s: %w", e.ID, err)
	}
	stats.Adopted++
	return nil
}

// resolve settles one conflict and applies the outcome to both sides.
func (s *Syncer) resolve(ctx context.Context, remote *Syncer, c Conflict, stats *Stats) error {
	res := s.resolver.Resolve(c)

	switch res.Resolution {
	case Deferred, Skipped:
		s.queue.Add(c, res.Message)
		stats.Deferred++
		return nil
	}

	if res.Resolved == nil {
		s.queue.Add(c, "resolver returned no entity")
		stats.Failed++
		return nil
	}

	out := *res.Resolved

	// Both registries must accept the resolution before either side is
	// written: a late rejection would leave one replica committed and the
	// other not.
	for _, v := range []*validate.Validator{s.validator, remote.validator} {
		if err := v.Validate(out); err != nil {
			s.queue.Add(c, fmt.Sprintf("resolved entity rejected by validation: %v", err))
			stats.Failed++
			slog.Warn("merge quarantined", "entity", c.EntityID, "error", err)
			return nil
		}
	}

	for _, side := range []struct {
		st      *store.Store
		current entity.Entity
	}{
		{s.store, c.Local},
		{remote.store, c.Remote},
	} {
		if side.current.Equal(out) {
			continue // this side already holds the winning state
		}
		if _, err := side.st.ApplyMerge(ctx, out); err != nil {
			if entity.IsValidation(err) {
				s.queue.Add(c, fmt.Sprintf("resolved entity rejected by validation: %v", err))
				stats.Failed++
				slog.Warn("merge quarantined", "entity", c.EntityID, "error", err)
				return nil
			}
			return fmt.Errorf("apply resolution for %s: %w", c.EntityID, err)
		}
	}

	stats.Resolved++
	return nil
}

func unionIDs(ctx context.Context, a, b *store.Store) ([]string, error) {
	aIDs, err := a.IDs(ctx)
	if err != nil {
		return nil, err
	}
	bIDs, err := b.IDs(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(aIDs)+len(bIDs))
	for _, id := range aIDs {
		set[id] = true
	}
	for _, id := range bIDs {
		set[id] = true
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
