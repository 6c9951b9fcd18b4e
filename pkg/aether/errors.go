package aether

import "fmt"

// UnknownTypeError is returned when a node would be created with a type that
// has no registration.
type UnknownTypeError struct {
	Path Path
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s: unknown component type %q", e.Path, e.Type)
}

// OrphanPathError is returned when a node would be created before one of its
// ancestors.
type OrphanPathError struct {
	Path Path
	// Missing is the shallowest ancestor that does not exist.
	Missing Path
}

func (e *OrphanPathError) Error() string {
	return fmt.Sprintf("%s: ancestor %s does not exist", e.Path, e.Missing)
}

// MethodNotFoundError is returned when a method call names a method the node
// does not expose.
type MethodNotFoundError struct {
	Path   Path
	Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("%s: no method %q", e.Path, e.Method)
}

// NotFoundError is returned when an update other than a state update
// addresses a path with no node.
type NotFoundError struct {
	Path Path
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no such node", e.Path)
}

// LeafParentError is returned when a node would be created under a leaf.
type LeafParentError struct {
	Path       Path
	ParentType string
}

func (e *LeafParentError) Error() string {
	return fmt.Sprintf("%s: parent of type %q cannot have children", e.Path, e.ParentType)
}

// TypeMismatchError is returned when a state update names a type different
// from that of the existing node.
type TypeMismatchError struct {
	Path Path
	Have string
	Want string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: node has type %q, update wants %q", e.Path, e.Have, e.Want)
}

// ContextNotFoundError is returned by Use when no ancestor has set the key.
type ContextNotFoundError struct {
	Path Path
	Key  string
}

func (e *ContextNotFoundError) Error() string {
	return fmt.Sprintf("%s: no context value for %q", e.Path, e.Key)
}
