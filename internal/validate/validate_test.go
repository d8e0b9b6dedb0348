package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chora/internal/entity"
	"github.com/roach88/chora/internal/schema"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	reg, err := schema.Parse([]byte(`
types:
  feature:
    statuses: [planned, in_progress, complete]
    required: [name]
  task:
    statuses: [open, complete]
`))
	require.NoError(t, err)
	return New(reg)
}

func TestValidate_Passes(t *testing.T) {
	v := testValidator(t)

	err := v.Validate(entity.New("feature-x", "feature", "planned", map[string]any{"name": "X"}))
	assert.NoError(t, err)
}

func TestValidate_UnknownType(t *testing.T) {
	v := testValidator(t)

	err := v.Validate(entity.New("release-1", "release", "draft", nil))
	assert.Equal(t, entity.CodeUnknownType, entity.CodeOf(err))
}

func TestValidate_InvalidStatus(t *testing.T) {
	v := testValidator(t)

	err := v.Validate(entity.New("feature-x", "feature", "bogus", map[string]any{"name": "X"}))
	assert.Equal(t, entity.CodeInvalidStatus, entity.CodeOf(err))
}

func TestValidate_MissingRequiredField(t *testing.T) {
	v := testValidator(t)

	err := v.Validate(entity.New("feature-x", "feature", "planned", map[string]any{}))
	require.Equal(t, entity.CodeMissingField, entity.CodeOf(err))

	var ve *entity.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
}

func TestValidate_NullRequiredFieldFails(t *testing.T) {
	v := testValidator(t)

	err := v.Validate(entity.New("feature-x", "feature", "planned", map[string]any{"name": nil}))
	assert.Equal(t, entity.CodeMissingField, entity.CodeOf(err))
}

func TestValidate_MalformedID(t *testing.T) {
	v := testValidator(t)

	err := v.Validate(entity.New("task-x", "feature", "planned", map[string]any{"name": "X"}))
	assert.Equal(t, entity.CodeMalformedID, entity.CodeOf(err))

	err = v.Validate(entity.New("", "task", "open", nil))
	assert.Equal(t, entity.CodeMalformedID, entity.CodeOf(err))
}

// Check order is fixed: an entity wrong in several ways reports the
// earliest check's failure.
func TestValidate_ShortCircuitOrder(t *testing.T) {
	v := testValidator(t)

	// Unknown type AND bad status AND bad id: type wins.
	err := v.Validate(entity.New("", "release", "bogus", nil))
	assert.Equal(t, entity.CodeUnknownType, entity.CodeOf(err))

	// Known type, bad status AND missing field AND bad id: status wins.
	err = v.Validate(entity.New("", "feature", "bogus", nil))
	assert.Equal(t, entity.CodeInvalidStatus, entity.CodeOf(err))

	// Known type, valid status, missing field AND bad id: field wins.
	err = v.Validate(entity.New("", "feature", "planned", nil))
	assert.Equal(t, entity.CodeMissingField, entity.CodeOf(err))
}

func TestValidate_NoRequiredFieldsType(t *testing.T) {
	v := testValidator(t)

	err := v.Validate(entity.New("task-a", "task", "open", nil))
	assert.NoError(t, err)
}
