package store

import (
	"fmt"
	"strings"

	"github.com/roach88/chora/internal/schema"
)

// entitiesTableSQL generates the entities table DDL from the registry.
//
// The CHECK constraints duplicate the validation engine's invariants at
// the storage layer: type must be a declared type, status must belong to
// the union of declared statuses, and the id must carry the type prefix.
// Per-type status membership stays with the validation engine; SQLite
// CHECKs cannot express the per-type status mapping without a lookup.
//
// name and description are virtual generated columns over the data JSON.
// The FTS index is declared with content='entities' and reads these
// columns back from the table when computing snippet(), so every FTS
// column must exist here.
func entitiesTableSQL(reg *schema.Registry) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS entities (\n")
	b.WriteString("    id TEXT PRIMARY KEY,\n")
	fmt.Fprintf(&b, "    type TEXT NOT NULL CHECK (type IN (%s)),\n", quoteList(reg.Types()))
	fmt.Fprintf(&b, "    status TEXT NOT NULL CHECK (status IN (%s)),\n", quoteList(reg.AllStatuses()))
	b.WriteString("    data TEXT NOT NULL DEFAULT '{}',\n")
	b.WriteString("    version INTEGER NOT NULL DEFAULT 1,\n")
	b.WriteString("    created_at TEXT NOT NULL,\n")
	b.WriteString("    updated_at TEXT NOT NULL,\n")
	b.WriteString("    name TEXT GENERATED ALWAYS AS (json_extract(data, '$.name')) VIRTUAL,\n")
	b.WriteString("    description TEXT GENERATED ALWAYS AS (json_extract(data, '$.description')) VIRTUAL,\n")
	b.WriteString("    CHECK (id LIKE type || '-%')\n")
	b.WriteString(");\n")
	return b.String()
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
