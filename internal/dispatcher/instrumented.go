package dispatcher

import (
	"context"

	"github.com/vk/panelsync/internal/gateway"
	"github.com/vk/panelsync/internal/metrics"
)

// instrumented counts gateway calls by operation and status.
type instrumented struct {
	inner gateway.Gateway
	m     *metrics.Pipeline
}

func (i instrumented) observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.m.GatewayCalls.WithLabelValues(op, status).Inc()
}

func (i instrumented) FindOpenDocument(ctx context.Context, path string) (*gateway.Document, error) {
	doc, err := i.inner.FindOpenDocument(ctx, path)
	i.observe("find_open_document", err)
	return doc, err
}

func (i instrumented) ActiveDocument(ctx context.Context) (*gateway.Document, error) {
	doc, err := i.inner.ActiveDocument(ctx)
	i.observe("active_document", err)
	return doc, err
}

func (i instrumented) ImportGeometry(ctx context.Context, into *gateway.Document, sourcePath string) error {
	err := i.inner.ImportGeometry(ctx, into, sourcePath)
	i.observe("import_geometry", err)
	return err
}

func (i instrumented) ExportGeometryAsOBJ(ctx context.Context, doc *gateway.Document, destinationPath string, opts gateway.ExportOptions) error {
	err := i.inner.ExportGeometryAsOBJ(ctx, doc, destinationPath, opts)
	i.observe("export_obj", err)
	return err
}
