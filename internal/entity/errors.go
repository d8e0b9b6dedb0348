package entity

import (
	"errors"
	"fmt"
)

// FailureCode categorizes validation and store failures.
type FailureCode string

const (
	// CodeUnknownType indicates the entity type is not declared in the schema.
	CodeUnknownType FailureCode = "UNKNOWN_TYPE"

	// CodeInvalidStatus indicates the status is outside the type's valid set.
	CodeInvalidStatus FailureCode = "INVALID_STATUS"

	// CodeMissingField indicates a schema-required data field is absent or null.
	CodeMissingField FailureCode = "MISSING_FIELD"

	// CodeMalformedID indicates the ID is empty or its prefix does not match the type.
	CodeMalformedID FailureCode = "MALFORMED_ID"

	// CodeDuplicateID indicates a create collided with an existing entity.
	CodeDuplicateID FailureCode = "DUPLICATE_ID"

	// CodeNotFound indicates an update or merge targeted a missing entity.
	CodeNotFound FailureCode = "NOT_FOUND"

	// CodeVersionConflict indicates the caller's expected version did not
	// match the stored version under strict optimistic concurrency.
	CodeVersionConflict FailureCode = "VERSION_CONFLICT"
)

// ValidationError is the structured failure surfaced by the validation
// engine and the store. Code identifies the category; Field is set for
// MISSING_FIELD failures.
type ValidationError struct {
	Code     FailureCode
	Message  string
	EntityID string
	Field    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewUnknownTypeError reports an undeclared entity type.
func NewUnknownTypeError(id, typ string, known []string) *ValidationError {
	return &ValidationError{
		Code:     CodeUnknownType,
		Message:  fmt.Sprintf("unknown entity type %q (valid types: %v)", typ, known),
		EntityID: id,
	}
}

// NewInvalidStatusError reports a status outside the type's valid set.
func NewInvalidStatusError(id, typ, status string, valid []string) *ValidationError {
	return &ValidationError{
		Code:     CodeInvalidStatus,
		Message:  fmt.Sprintf("invalid status %q for %s (valid statuses: %v)", status, typ, valid),
		EntityID: id,
	}
}

// NewMissingFieldError reports an absent or null required field.
func NewMissingFieldError(id, typ, field string) *ValidationError {
	return &ValidationError{
		Code:     CodeMissingField,
		Message:  fmt.Sprintf("missing required field %q for %s", field, typ),
		EntityID: id,
		Field:    field,
	}
}

// NewMalformedIDError reports an ID that is empty or does not carry the
// "<type>-" prefix.
func NewMalformedIDError(id, typ string) *ValidationError {
	if id == "" {
		return &ValidationError{Code: CodeMalformedID, Message: "entity ID is required"}
	}
	return &ValidationError{
		Code:     CodeMalformedID,
		Message:  fmt.Sprintf("entity ID %q must start with %q", id, typ+IDSeparator),
		EntityID: id,
	}
}

// NewDuplicateIDError reports a create against an existing ID.
func NewDuplicateIDError(id string) *ValidationError {
	return &ValidationError{
		Code:     CodeDuplicateID,
		Message:  fmt.Sprintf("entity %q already exists", id),
		EntityID: id,
	}
}

// NewNotFoundError reports an update or merge against a missing ID.
func NewNotFoundError(id string) *ValidationError {
	return &ValidationError{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("entity %q not found", id),
		EntityID: id,
	}
}

// NewVersionConflictError reports a strict optimistic-concurrency mismatch.
func NewVersionConflictError(id string, expected, current int64) *ValidationError {
	return &ValidationError{
		Code:     CodeVersionConflict,
		Message:  fmt.Sprintf("version conflict: expected %d, stored %d", expected, current),
		EntityID: id,
	}
}

// CodeOf extracts the failure code from a wrapped error, or "" when the
// error is not a ValidationError.
func CodeOf(err error) FailureCode {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND failure.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsDuplicateID reports whether err is a DUPLICATE_ID failure.
func IsDuplicateID(err error) bool { return CodeOf(err) == CodeDuplicateID }

// IsVersionConflict reports whether err is a VERSION_CONFLICT failure.
func IsVersionConflict(err error) bool { return CodeOf(err) == CodeVersionConflict }

// IsValidation reports whether err is one of the pure validation failures
// (unknown type, invalid status, missing field, malformed ID).
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case CodeUnknownType, CodeInvalidStatus, CodeMissingField, CodeMalformedID:
		return true
	}
	return false
}
