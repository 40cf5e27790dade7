package gateway

import (
	"context"

	"github.com/vk/panelsync/internal/ctxlog"
)

// DryRun logs every call and pretends each requested document is open. It
// lets the pipeline run end to end without a host application.
type DryRun struct{}

func (DryRun) FindOpenDocument(ctx context.Context, path string) (*Document, error) {
	ctxlog.FromContext(ctx).Info("[dry-run] find open document", "document", path)
	return &Document{ID: "dry-run", Path: path}, nil
}

func (DryRun) ActiveDocument(ctx context.Context) (*Document, error) {
	ctxlog.FromContext(ctx).Info("[dry-run] no active document")
	return nil, nil
}

func (DryRun) ImportGeometry(ctx context.Context, into *Document, sourcePath string) error {
	target := "<new document>"
	if into != nil {
		target = into.Path
	}
	ctxlog.FromContext(ctx).Info("[dry-run] import geometry", "source", sourcePath, "into", target)
	return nil
}

func (DryRun) ExportGeometryAsOBJ(ctx context.Context, doc *Document, destinationPath string, opts ExportOptions) error {
	ctxlog.FromContext(ctx).Info("[dry-run] export OBJ", "document", doc.Path, "destination", destinationPath, "bring_to_front", opts.BringToFront)
	return nil
}
