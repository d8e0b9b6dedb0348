// Package validate implements the validation engine: the single gate every
// entity passes before it is persisted, whether the write originates from a
// caller or from the sync engine's merge output. There is no merge-specific
// relaxation: identical rules, identical order.
package validate

import (
	"slices"
	"strings"

	"github.com/roach88/chora/internal/entity"
	"github.com/roach88/chora/internal/schema"
)

// Validator checks candidate entities against the schema registry.
// It is a pure function over its inputs and performs no I/O; uniqueness
// and existence checks belong to the store.
type Validator struct {
	reg *schema.Registry
}

// New returns a Validator backed by the given registry.
func New(reg *schema.Registry) *Validator {
	return &Validator{reg: reg}
}

// Validate checks a candidate entity, short-circuiting on the first
// failure. Check order is fixed: type, status, required fields, ID shape.
func (v *Validator) Validate(e entity.Entity) error {
	if !v.reg.Has(e.Type) {
		return entity.NewUnknownTypeError(e.ID, e.Type, v.reg.Types())
	}

	statuses := v.reg.ValidStatuses(e.Type)
	if !slices.Contains(statuses, e.Status) {
		return entity.NewInvalidStatusError(e.ID, e.Type, e.Status, statuses)
	}

	for _, field := range v.reg.RequiredFields(e.Type) {
		val, ok := e.Data[field]
		if !ok || val == nil {
			return entity.NewMissingFieldError(e.ID, e.Type, field)
		}
	}

	if e.ID == "" || !strings.HasPrefix(e.ID, e.Type+entity.IDSeparator) {
		return entity.NewMalformedIDError(e.ID, e.Type)
	}

	return nil
}
