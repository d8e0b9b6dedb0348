package store

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/chora/internal/entity"
)

// seedEntities creates a fixed population in a deterministic order. The
// stepping clock gives each row a distinct created_at.
func seedEntities(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	seeds := []entity.Entity{
		testFeature("feature-auth", "Auth service"),
		testFeature("feature-search", "Search engine"),
		testTask("task-deploy", "Deploy to staging"),
		testTask("task-review", "Review auth design"),
	}
	for _, e := range seeds {
		if _, err := s.Create(ctx, e); err != nil {
			t.Fatalf("seed %s: %v", e.ID, err)
		}
	}
}

func TestRead_Missing(t *testing.T) {
	s, _ := openTestStore(t)

	_, ok, err := s.Read(context.Background(), "feature-ghost")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if ok {
		t.Error("Read() found a missing entity")
	}
}

func TestList_All(t *testing.T) {
	s, _ := openTestStore(t)
	seedEntities(t, s)

	got, err := s.List(context.Background(), Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d entities, want 4", len(got))
	}
	// Creation order: the stepping clock makes created_at strictly increasing.
	wantOrder := []string{"feature-auth", "feature-search", "task-deploy", "task-review"}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestList_Filters(t *testing.T) {
	s, _ := openTestStore(t)
	seedEntities(t, s)
	ctx := context.Background()

	features, err := s.List(ctx, Filter{Type: "feature"}, 0, 0)
	if err != nil {
		t.Fatalf("List(type) error = %v", err)
	}
	if len(features) != 2 {
		t.Errorf("got %d features, want 2", len(features))
	}

	open, err := s.List(ctx, Filter{Status: "open"}, 0, 0)
	if err != nil {
		t.Fatalf("List(status) error = %v", err)
	}
	if len(open) != 2 {
		t.Errorf("got %d open entities, want 2", len(open))
	}

	both, err := s.List(ctx, Filter{Type: "task", Status: "open"}, 0, 0)
	if err != nil {
		t.Fatalf("List(type+status) error = %v", err)
	}
	if len(both) != 2 {
		t.Errorf("got %d open tasks, want 2", len(both))
	}

	none, err := s.List(ctx, Filter{Type: "feature", Status: "open"}, 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d, want 0", len(none))
	}
}

func TestList_Pagination(t *testing.T) {
	s, _ := openTestStore(t)
	seedEntities(t, s)
	ctx := context.Background()

	page1, err := s.List(ctx, Filter{}, 2, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	page2, err := s.List(ctx, Filter{}, 2, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("page sizes = %d, %d, want 2, 2", len(page1), len(page2))
	}
	if page1[1].ID == page2[0].ID {
		t.Error("pages overlap")
	}
}

func TestSearch(t *testing.T) {
	s, _ := openTestStore(t)
	seedEntities(t, s)
	ctx := context.Background()

	got, err := s.Search(ctx, "auth", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2 (feature-auth, task-review)", len(got))
	}

	none, err := s.Search(ctx, "nonexistent", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d matches, want 0", len(none))
	}
}

func TestSearch_IndexFollowsWrites(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, testFeature("feature-auth", "Authentication"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.Update(ctx, created.WithField("name", "Login flow")); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	stale, err := s.Search(ctx, "authentication", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(stale) != 0 {
		t.Error("index still matches the replaced name")
	}

	fresh, err := s.Search(ctx, "login", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(fresh) != 1 {
		t.Errorf("got %d matches for new name, want 1", len(fresh))
	}

	if _, err := s.Delete(ctx, "feature-auth"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	gone, err := s.Search(ctx, "login", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(gone) != 0 {
		t.Error("index still matches the deleted row")
	}
}

func TestSearch_SnippetReadsContentTable(t *testing.T) {
	s, _ := openTestStore(t)
	seedEntities(t, s)

	// snippet() makes FTS5 read the matched columns back from the
	// entities table, so it only works while every indexed column exists
	// there (name and description are generated columns).
	var snip string
	err := s.db.QueryRow(`
		SELECT snippet(entities_fts, 3, '[', ']', '...', 10)
		FROM entities e
		JOIN entities_fts fts ON e.rowid = fts.rowid
		WHERE entities_fts MATCH 'auth'
		ORDER BY rank
		LIMIT 1
	`).Scan(&snip)
	if err != nil {
		t.Fatalf("snippet query: %v", err)
	}
	if !strings.Contains(strings.ToLower(snip), "[auth]") {
		t.Errorf("snippet = %q, want a highlighted auth token", snip)
	}
}

func TestGeneratedColumnsTrackData(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, testFeature("feature-auth", "Auth service"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var name string
	if err := s.db.QueryRow(
		"SELECT name FROM entities WHERE id = ?", "feature-auth",
	).Scan(&name); err != nil {
		t.Fatalf("read generated column: %v", err)
	}
	if name != "Auth service" {
		t.Errorf("name = %q, want %q", name, "Auth service")
	}

	if _, err := s.Update(ctx, created.WithField("name", "Login flow")); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := s.db.QueryRow(
		"SELECT name FROM entities WHERE id = ?", "feature-auth",
	).Scan(&name); err != nil {
		t.Fatalf("read generated column: %v", err)
	}
	if name != "Login flow" {
		t.Errorf("name = %q, want %q", name, "Login flow")
	}
}

func TestIDs(t *testing.T) {
	s, _ := openTestStore(t)
	seedEntities(t, s)

	ids, err := s.IDs(context.Background())
	if err != nil {
		t.Fatalf("IDs() error = %v", err)
	}
	want := []string{"feature-auth", "feature-search", "task-deploy", "task-review"}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestChangesSince(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, testFeature("feature-auth", "Auth"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.Update(ctx, created.WithStatus("in_progress")); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := s.Delete(ctx, "feature-auth"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	changes, err := s.ChangesSince(ctx, 0)
	if err != nil {
		t.Fatalf("ChangesSince() error = %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("got %d changes, want 3", len(changes))
	}

	wantTypes := []string{"create", "update", "delete"}
	for i, want := range wantTypes {
		if changes[i].Type != want {
			t.Errorf("change %d type = %q, want %q", i, changes[i].Type, want)
		}
		if changes[i].Seq != int64(i+1) {
			t.Errorf("change %d seq = %d, want %d", i, changes[i].Seq, i+1)
		}
	}

	// Delete snapshots carry the removed entity at a bumped version.
	if changes[2].Version != 3 {
		t.Errorf("delete record version = %d, want 3", changes[2].Version)
	}
	if changes[2].Snapshot.Status != "in_progress" {
		t.Errorf("delete snapshot status = %q, want in_progress", changes[2].Snapshot.Status)
	}

	tail, err := s.ChangesSince(ctx, 2)
	if err != nil {
		t.Fatalf("ChangesSince(2) error = %v", err)
	}
	if len(tail) != 1 || tail[0].Type != "delete" {
		t.Errorf("tail = %+v, want single delete record", tail)
	}
}

func TestLastChangeSeq(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	seq, err := s.LastChangeSeq(ctx)
	if err != nil {
		t.Fatalf("LastChangeSeq() error = %v", err)
	}
	if seq != 0 {
		t.Errorf("empty log seq = %d, want 0", seq)
	}

	if _, err := s.Create(ctx, testFeature("feature-auth", "Auth")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	seq, err = s.LastChangeSeq(ctx)
	if err != nil {
		t.Fatalf("LastChangeSeq() error = %v", err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
}
