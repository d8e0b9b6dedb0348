package schema

import "fmt"

// Error codes for schema load failures. All are fatal at construction time.
const (
	ErrCodeRead      = "SCHEMA_READ_ERROR"
	ErrCodeSyntax    = "SCHEMA_SYNTAX_ERROR"
	ErrCodeStructure = "SCHEMA_STRUCTURE_ERROR"
	ErrCodeSemantics = "SCHEMA_SEMANTICS_ERROR"
)

// LoadError represents a failure to load or validate the schema document.
type LoadError struct {
	Code    string
	Message string
	Path    string // source file path, when known
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
