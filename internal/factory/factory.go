// Package factory builds entities the sanctioned way: semantic ID from a
// human title, default status from the registry, assembled data payload,
// then a validated store write. Going through the store directly is fine
// (the store validates too), but the factory is where IDs come from.
package factory

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/chora/internal/entity"
	"github.com/roach88/chora/internal/schema"
	"github.com/roach88/chora/internal/store"
)

// maxSlugLen caps generated slugs; beyond this, IDs stop being readable.
const maxSlugLen = 50

// Factory constructs and persists entities governed by a schema registry.
type Factory struct {
	reg   *schema.Registry
	store *store.Store
}

// New returns a Factory writing to the given store.
func New(st *store.Store) *Factory {
	return &Factory{reg: st.Registry(), store: st}
}

// CreateOption adjusts a Create call.
type CreateOption func(*createParams)

type createParams struct {
	status      string
	description string
	fields      map[string]any
}

// WithStatus overrides the registry's default status.
func WithStatus(status string) CreateOption {
	return func(p *createParams) { p.status = status }
}

// WithDescription sets the description data field.
func WithDescription(desc string) CreateOption {
	return func(p *createParams) { p.description = desc }
}

// WithField sets an arbitrary data field.
func WithField(key string, value any) CreateOption {
	return func(p *createParams) {
		if p.fields == nil {
			p.fields = map[string]any{}
		}
		p.fields[key] = value
	}
}

// Create builds an entity of the given type from a human-readable title
// and persists it. The ID is "<type>-<slug(title)>"; the status defaults
// per the registry. All validation failures surface from the store.
func (f *Factory) Create(ctx context.Context, entityType, title string, opts ...CreateOption) (entity.Entity, error) {
	if !f.reg.Has(entityType) {
		return entity.Entity{}, entity.NewUnknownTypeError("", entityType, f.reg.Types())
	}

	slug, err := Slugify(title)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("create %s: %w", entityType, err)
	}

	var p createParams
	for _, opt := range opts {
		opt(&p)
	}

	status := p.status
	if status == "" {
		status = f.reg.DefaultStatus(entityType)
	}

	data := map[string]any{
		"name":        title,
		"description": p.description,
	}
	for k, v := range p.fields {
		data[k] = v
	}

	e := entity.New(entityType+entity.IDSeparator+slug, entityType, status, data)
	return f.store.Create(ctx, e)
}

// SetStatus transitions an entity to a new status through a strict
// read-modify-write.
func (f *Factory) SetStatus(ctx context.Context, id, status string) (entity.Entity, error) {
	current, ok, err := f.store.Read(ctx, id)
	if err != nil {
		return entity.Entity{}, err
	}
	if !ok {
		return entity.Entity{}, entity.NewNotFoundError(id)
	}
	return f.store.Update(ctx, current.WithStatus(status))
}

// Put merges the given fields into an entity's data through a strict
// read-modify-write.
func (f *Factory) Put(ctx context.Context, id string, fields map[string]any) (entity.Entity, error) {
	current, ok, err := f.store.Read(ctx, id)
	if err != nil {
		return entity.Entity{}, err
	}
	if !ok {
		return entity.Entity{}, entity.NewNotFoundError(id)
	}
	next := current.Clone()
	for k, v := range fields {
		next.Data[k] = v
	}
	return f.store.Update(ctx, next)
}

// Slugify converts a human title into a URL-safe slug: Unicode-normalized
// (NFKD with combining marks stripped, so "Café" slugs like "cafe"),
// lowercased, hyphen-separated, trimmed to 50 runes. A title with no
// usable characters is an error: an empty slug would produce a malformed
// ID.
func Slugify(title string) (string, error) {
	decomposed := norm.NFKD.String(title)

	var b strings.Builder
	lastHyphen := true // swallow leading hyphens
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark from decomposition, drop
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
			lastHyphen = false
		case r == ' ' || r == '_' || r == '-' || r == '\t':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "", fmt.Errorf("title %q produces an empty slug", title)
	}
	return slug, nil
}
