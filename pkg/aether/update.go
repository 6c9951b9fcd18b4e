package aether

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/propagation"

	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
)

// Variant tags the kind of an Update.
type Variant string

const (
	// VariantState carries a (partial) state object for the node at Path.
	VariantState Variant = "state"
	// VariantContext carries context values set on the node at Path.
	VariantContext Variant = "context"
	// VariantMethodCall invokes Method on the node at Path with State as the
	// arguments.
	VariantMethodCall Variant = "method-call"
	// VariantMethodReturn answers a method call with the same CallID.
	VariantMethodReturn Variant = "method-return"
	// VariantDelete removes the node at Path and its descendants.
	VariantDelete Variant = "delete"
)

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantState, VariantContext, VariantMethodCall, VariantMethodReturn, VariantDelete:
		return true
	}
	return false
}

// Update is the unit of communication between the presentation side and the
// worker.
type Update struct {
	Path    Path    `json:"path"`
	Variant Variant `json:"variant"`
	// Type names the component expected at Path. It is required when a state
	// update creates a node.
	Type string `json:"type,omitempty"`
	// State is the encoded payload: a state patch, context values, method
	// arguments or a method result depending on Variant.
	State  json.RawMessage `json:"state,omitempty"`
	CallID string          `json:"callId,omitempty"`
	Method string          `json:"method,omitempty"`
	// Error is set on a method-return whose call failed.
	Error *RemoteError `json:"error,omitempty"`
	// Trace carries W3C trace context across the boundary.
	Trace map[string]string `json:"trace,omitempty"`
}

var propagator = propagation.TraceContext{}

// Inject records the span context of ctx in u.Trace.
func (u *Update) Inject(ctx context.Context) {
	carrier := propagation.MapCarrier{}
	propagator.Inject(ctx, carrier)
	if len(carrier) > 0 {
		u.Trace = carrier
	}
}

// Extract returns ctx extended with the span context recorded in u.Trace.
func (u Update) Extract(ctx context.Context) context.Context {
	if len(u.Trace) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, propagation.MapCarrier(u.Trace))
}

func (u Update) String() string {
	return fmt.Sprintf("%s %s(%s)", u.Variant, u.Path, u.Type)
}

// Sender delivers updates to the other side of the boundary. It is satisfied
// by the connections in pkg/comms.
type Sender interface {
	Send(ctx context.Context, u Update) error
}

// SenderFunc adapts a function to a Sender.
type SenderFunc func(ctx context.Context, u Update) error

func (f SenderFunc) Send(ctx context.Context, u Update) error { return f(ctx, u) }

// Kinds of RemoteError.
const (
	KindSchema         = "schema"
	KindUnknownType    = "unknown-type"
	KindOrphanPath     = "orphan-path"
	KindMethodNotFound = "method-not-found"
	KindNotFound       = "not-found"
	KindLeafParent     = "leaf-parent"
	KindTypeMismatch   = "type-mismatch"
	KindOther          = "error"
)

// RemoteError is the wire form of an error. Detail holds the kind-specific
// datum: the field path of a schema violation, the type name or the method
// name.
type RemoteError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Path    Path   `json:"path,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func (e *RemoteError) Error() string { return e.Message }

// NewRemoteError converts err into its wire form.
func NewRemoteError(err error) *RemoteError {
	var (
		violation *schema.Violation
		unknown   *UnknownTypeError
		orphan    *OrphanPathError
		method    *MethodNotFoundError
		notFound  *NotFoundError
		leaf      *LeafParentError
		mismatch  *TypeMismatchError
		remote    *RemoteError
	)
	switch {
	case errors.As(err, &remote):
		return remote
	case errors.As(err, &violation):
		return &RemoteError{Kind: KindSchema, Message: violation.Msg, Detail: strings.Join(violation.Path, ".")}
	case errors.As(err, &unknown):
		return &RemoteError{Kind: KindUnknownType, Message: err.Error(), Path: unknown.Path, Detail: unknown.Type}
	case errors.As(err, &orphan):
		return &RemoteError{Kind: KindOrphanPath, Message: err.Error(), Path: orphan.Path, Detail: orphan.Missing.String()}
	case errors.As(err, &method):
		return &RemoteError{Kind: KindMethodNotFound, Message: err.Error(), Path: method.Path, Detail: method.Method}
	case errors.As(err, &notFound):
		return &RemoteError{Kind: KindNotFound, Message: err.Error(), Path: notFound.Path}
	case errors.As(err, &leaf):
		return &RemoteError{Kind: KindLeafParent, Message: err.Error(), Path: leaf.Path, Detail: leaf.ParentType}
	case errors.As(err, &mismatch):
		return &RemoteError{Kind: KindTypeMismatch, Message: err.Error(), Path: mismatch.Path, Detail: mismatch.Want}
	}
	return &RemoteError{Kind: KindOther, Message: err.Error()}
}

// AsError rebuilds the typed error described by e where the kind allows it,
// and returns e itself otherwise.
func (e *RemoteError) AsError() error {
	switch e.Kind {
	case KindSchema:
		var path []string
		if e.Detail != "" {
			path = strings.Split(e.Detail, ".")
		}
		return &schema.Violation{Path: path, Msg: e.Message}
	case KindUnknownType:
		return &UnknownTypeError{Path: e.Path, Type: e.Detail}
	case KindOrphanPath:
		return &OrphanPathError{Path: e.Path, Missing: ParsePath(e.Detail)}
	case KindMethodNotFound:
		return &MethodNotFoundError{Path: e.Path, Method: e.Detail}
	case KindNotFound:
		return &NotFoundError{Path: e.Path}
	}
	return e
}
