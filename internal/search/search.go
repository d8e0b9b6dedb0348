// Package search layers richer full-text queries over the store's derived
// FTS5 index: BM25-ranked results with highlighted snippets, faceted
// match counts, and name-prefix suggestions. It reads the index directly
// and never writes; the index itself is maintained by the store's
// triggers and is rebuildable from entity content.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/chora/internal/entity"
	"github.com/roach88/chora/internal/store"
)

// Searcher runs enhanced queries against a store's database.
type Searcher struct {
	db *sql.DB
}

// New returns a Searcher over the given store.
func New(st *store.Store) *Searcher {
	return &Searcher{db: st.DB()}
}

// Result is one ranked match. Rank is the raw BM25 score (lower is a
// better match). Snippets are empty unless requested.
type Result struct {
	Entity      entity.Entity
	Rank        float64
	NameSnippet string
	DescSnippet string
}

// Options narrows and shapes a search. Zero values mean no filter, a
// limit of 20, and no snippets.
type Options struct {
	Type     string
	Status   string
	Limit    int
	Offset   int
	Snippets bool
}

// Search runs an FTS5 query (supports AND, OR, NOT, "phrase") and returns
// ranked results.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	conditions := "entities_fts MATCH ?"
	args := []any{query}
	if opts.Type != "" {
		conditions += " AND e.type = ?"
		args = append(args, opts.Type)
	}
	if opts.Status != "" {
		conditions += " AND e.status = ?"
		args = append(args, opts.Status)
	}

	snippetCols := "'' AS name_snippet, '' AS desc_snippet"
	if opts.Snippets {
		snippetCols = `snippet(entities_fts, 3, '<mark>', '</mark>', '...', 30) AS name_snippet,
			snippet(entities_fts, 4, '<mark>', '</mark>', '...', 50) AS desc_snippet`
	}

	q := fmt.Sprintf(`
		SELECT e.id, e.type, e.status, e.data, e.version, e.created_at, e.updated_at,
			bm25(entities_fts) AS rank,
			%s
		FROM entities e
		JOIN entities_fts fts ON e.rowid = fts.rowid
		WHERE %s
		ORDER BY rank, e.updated_at DESC
		LIMIT ? OFFSET ?
	`, snippetCols, conditions)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var (
			r        Result
			dataJSON string
			created  string
			updated  string
		)
		e := &r.Entity
		if err := rows.Scan(&e.ID, &e.Type, &e.Status, &dataJSON, &e.Version,
			&created, &updated, &r.Rank, &r.NameSnippet, &r.DescSnippet); err != nil {
			return nil, fmt.Errorf("search %q: scan: %w", query, err)
		}
		if e.Data, err = entity.UnmarshalData(dataJSON); err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		if e.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return results, nil
}

// FacetCount is the number of matches carrying one facet value.
type FacetCount struct {
	Value string
	Count int
}

// Facets holds per-type and per-status match counts for a query.
type Facets struct {
	Types    []FacetCount
	Statuses []FacetCount
}

// Facets computes match counts grouped by type and by status.
func (s *Searcher) Facets(ctx context.Context, query string) (Facets, error) {
	var out Facets
	var err error
	if out.Types, err = s.facet(ctx, query, "type"); err != nil {
		return Facets{}, err
	}
	if out.Statuses, err = s.facet(ctx, query, "status"); err != nil {
		return Facets{}, err
	}
	return out, nil
}

// facet groups matches by one of the fixed entity columns. column is
// always "type" or "status", never caller input.
func (s *Searcher) facet(ctx context.Context, query, column string) ([]FacetCount, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT e.%[1]s, COUNT(*)
		FROM entities e
		JOIN entities_fts fts ON e.rowid = fts.rowid
		WHERE entities_fts MATCH ?
		GROUP BY e.%[1]s
		ORDER BY COUNT(*) DESC, e.%[1]s ASC
	`, column), query)
	if err != nil {
		return nil, fmt.Errorf("facet %s for %q: %w", column, query, err)
	}
	defer rows.Close()

	counts := []FacetCount{}
	for rows.Next() {
		var fc FacetCount
		if err := rows.Scan(&fc.Value, &fc.Count); err != nil {
			return nil, fmt.Errorf("facet %s for %q: scan: %w", column, query, err)
		}
		counts = append(counts, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facet %s for %q: %w", column, query, err)
	}
	return counts, nil
}

// Suggest returns distinct entity names starting with prefix,
// case-insensitively, in name order. limit <= 0 defaults to 10.
func (s *Searcher) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT json_extract(data, '$.name')
		FROM entities
		WHERE json_extract(data, '$.name') LIKE ? || '%' COLLATE NOCASE
		ORDER BY json_extract(data, '$.name') ASC
		LIMIT ?
	`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("suggest %q: %w", prefix, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("suggest %q: scan: %w", prefix, err)
		}
		if name.Valid && name.String != "" {
			names = append(names, name.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("suggest %q: %w", prefix, err)
	}
	return names, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
