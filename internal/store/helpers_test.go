package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/chora/internal/entity"
	"github.com/roach88/chora/internal/schema"
	"github.com/roach88/chora/internal/testutil"
)

const testSchemaDoc = `
types:
  feature:
    statuses: [planned, in_progress, complete]
    required: [name]
  task:
    statuses: [open, in_progress, complete, blocked]
    default_status: open
`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Parse([]byte(testSchemaDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return reg
}

// openTestStore opens a store over a temp database with a deterministic
// clock starting at testutil.Epoch and stepping one second per write.
func openTestStore(t *testing.T, opts ...Option) (*Store, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(time.Time{}, 0)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := Open(filepath.Join(t.TempDir(), "entities.db"), testRegistry(t), opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func testFeature(id, name string) entity.Entity {
	return entity.New(id, "feature", "planned", map[string]any{"name": name})
}

func testTask(id, name string) entity.Entity {
	return entity.New(id, "task", "open", map[string]any{"name": name})
}
