// Package gateway defines the boundary to the host CAD application.
//
// The host's document API is single-threaded, so every implementation is
// treated as unsafe for concurrent use; share it between workers only
// through an Exclusive.
package gateway

import (
	"context"
	"errors"
	"strings"
)

// ErrNoSolidGeometry is returned by ExportGeometryAsOBJ when the document has
// nothing an OBJ translator can write.
var ErrNoSolidGeometry = errors.New("gateway: document has no solid geometry")

// Document is a handle to a document open in the host.
type Document struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// SamePath compares document paths the way the host does: case-insensitive
// and indifferent to slash style.
func SamePath(a, b string) bool {
	norm := func(p string) string { return strings.ReplaceAll(p, `\`, "/") }
	return strings.EqualFold(norm(a), norm(b))
}

// ExportOptions are hints forwarded with an export request.
type ExportOptions struct {
	BringToFront bool `json:"bringToFront"`
}

// Gateway is the set of host operations the pipeline needs.
type Gateway interface {
	// FindOpenDocument returns the open document at path, or nil.
	FindOpenDocument(ctx context.Context, path string) (*Document, error)
	// ActiveDocument returns the active part document, or nil.
	ActiveDocument(ctx context.Context) (*Document, error)
	// ImportGeometry imports sourcePath into the document. A nil document
	// asks the host to create and save a new one first.
	ImportGeometry(ctx context.Context, into *Document, sourcePath string) error
	// ExportGeometryAsOBJ writes the document's solids to destinationPath.
	ExportGeometryAsOBJ(ctx context.Context, doc *Document, destinationPath string, opts ExportOptions) error
}

// Exclusive grants one caller at a time access to a Gateway. Handlers that
// need several host calls in a row hold it across the whole sequence.
type Exclusive struct {
	sem chan struct{}
	g   Gateway
}

// NewExclusive wraps g.
func NewExclusive(g Gateway) *Exclusive {
	return &Exclusive{sem: make(chan struct{}, 1), g: g}
}

// Do runs fn with exclusive access to the gateway. It gives up with
// ctx.Err() if ctx ends while waiting for another caller to finish.
func (e *Exclusive) Do(ctx context.Context, fn func(Gateway) error) error {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()
	return fn(e.g)
}
