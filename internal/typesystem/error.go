package typesystem

import "github.com/aot-native/ilc/internal/diagnostics"

// NewTypeNotFoundError is scoped to the one failure GetType actually raises.
func NewTypeNotFoundError(qualifiedName string) *diagnostics.TypeSystemError {
	return diagnostics.NewTypeSystemError(diagnostics.TypeLoad, qualifiedName, "type not found")
}

// NewMissingFieldError is raised when a FieldDesc lookup fails against a
// type's declared field set.
func NewMissingFieldError(owner TypeDesc, name string) *diagnostics.TypeSystemError {
	return diagnostics.NewTypeSystemError(diagnostics.MissingField, owner.String()+"."+name, "")
}

// NewMissingMethodError is raised when a MethodDesc lookup fails.
func NewMissingMethodError(owner TypeDesc, name string) *diagnostics.TypeSystemError {
	return diagnostics.NewTypeSystemError(diagnostics.MissingMethod, owner.String()+"."+name, "")
}
