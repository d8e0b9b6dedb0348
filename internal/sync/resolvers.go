package sync

import (
	"fmt"

	"github.com/roach88/chora/internal/entity"
)

// localNewer reports whether the local side wins a last-write comparison:
// strictly later updated_at, or on an exact timestamp tie the lexically
// smaller site id. The tiebreak is arbitrary but identical on both sites,
// which is all determinism needs.
func localNewer(c Conflict) bool {
	if c.Local.UpdatedAt.After(c.Remote.UpdatedAt) {
		return true
	}
	if c.Remote.UpdatedAt.After(c.Local.UpdatedAt) {
		return false
	}
	return c.LocalSiteID < c.RemoteSiteID
}

// pick builds a winner Result from one side of the conflict.
func pick(c Conflict, local bool, message string) Result {
	if local {
		winner := c.Local.Clone()
		return Result{Conflict: c, Resolution: LocalWins, Resolved: &winner, Message: message}
	}
	winner := c.Remote.Clone()
	return Result{Conflict: c, Resolution: RemoteWins, Resolved: &winner, Message: message}
}

// LastWriteWins resolves to the side with the later updated_at, breaking
// exact ties by site id lexical order. Simple, and loses the other side's
// changes wholesale.
type LastWriteWins struct{}

func (LastWriteWins) Resolve(c Conflict) Result {
	if localNewer(c) {
		return pick(c, true, fmt.Sprintf("local newer (%s >= %s)",
			c.Local.UpdatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
			c.Remote.UpdatedAt.Format("2006-01-02T15:04:05.999999999Z07:00")))
	}
	return pick(c, false, fmt.Sprintf("remote newer (%s > %s)",
		c.Remote.UpdatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		c.Local.UpdatedAt.Format("2006-01-02T15:04:05.999999999Z07:00")))
}

// HigherVersionWins resolves to the side with the strictly greater
// version; equal versions fall back to last-write-wins.
type HigherVersionWins struct{}

func (HigherVersionWins) Resolve(c Conflict) Result {
	switch {
	case c.Local.Version > c.Remote.Version:
		return pick(c, true, fmt.Sprintf("local version higher (%d > %d)",
			c.Local.Version, c.Remote.Version))
	case c.Remote.Version > c.Local.Version:
		return pick(c, false, fmt.Sprintf("remote version higher (%d > %d)",
			c.Remote.Version, c.Local.Version))
	default:
		return LastWriteWins{}.Resolve(c)
	}
}

// MergeFields unions the two data payloads field by field. Keys present on
// both sides with different values take the value from the side with the
// later updated_at (site-id tiebreak); status and type resolve via
// last-write-wins at the entity level. The merged version is the greater
// of the two so both replicas converge on one version.
type MergeFields struct{}

func (MergeFields) Resolve(c Conflict) Result {
	localWins := localNewer(c)

	base := c.Remote
	other := c.Local
	if localWins {
		base = c.Local
		other = c.Remote
	}

	merged := base.Clone()
	merged.Data = map[string]any{}

	var log []string
	for key, val := range winnerFirst(c, localWins).Data {
		merged.Data[key] = val
	}
	for key, val := range loserSecond(c, localWins).Data {
		if _, taken := merged.Data[key]; !taken {
			merged.Data[key] = val
			log = append(log, key+": adopted")
		}
	}

	if other.Version > merged.Version {
		merged.Version = other.Version
	}
	if other.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = other.UpdatedAt
	}

	msg := "merged fields"
	if len(log) > 0 {
		msg = fmt.Sprintf("merged fields (%d adopted from losing side)", len(log))
	}
	return Result{Conflict: c, Resolution: Merged, Resolved: &merged, Message: msg}
}

func winnerFirst(c Conflict, localWins bool) entity.Entity {
	if localWins {
		return c.Local
	}
	return c.Remote
}

func loserSecond(c Conflict, localWins bool) entity.Entity {
	if localWins {
		return c.Remote
	}
	return c.Local
}

// Defer leaves both sides untouched and parks the conflict for manual
// resolution. The same divergence is re-detected on the next pass.
type Defer struct{}

func (Defer) Resolve(c Conflict) Result {
	return Result{Conflict: c, Resolution: Deferred, Message: "deferred for manual resolution"}
}

// Callback delegates the decision to caller-supplied logic. The returned
// entity is used as-is, still subject to validation before any write.
type Callback struct {
	Fn func(Conflict) Result
}

func (r Callback) Resolve(c Conflict) Result {
	return r.Fn(c)
}
