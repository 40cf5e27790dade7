package dispatcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/panelsync/internal/ctxlog"
	"github.com/vk/panelsync/internal/gateway"
	"github.com/vk/panelsync/internal/job"
	"github.com/vk/panelsync/internal/metrics"
)

// handleJobFile reads and parses a descriptor and runs the matching handler.
func (d *Dispatcher) handleJobFile(ctx context.Context, path string) string {
	logger := ctxlog.FromContext(ctx)

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("Cannot read job descriptor.", "error", err)
		return metrics.OutcomeFailed
	}

	desc, err := job.Parse(raw)
	switch {
	case errors.Is(err, job.ErrValidation):
		logger.Warn("Job descriptor failed validation.", "error", err)
		return metrics.OutcomeInvalid
	case err != nil:
		logger.Warn("Job descriptor is malformed.", "error", err)
		return metrics.OutcomeInvalid
	}

	ctx = ctxlog.With(ctx, "job_kind", string(desc.Kind()))
	logger = ctxlog.FromContext(ctx)

	switch desc := desc.(type) {
	case *job.ExportPanelAsOBJ:
		outcome, err := d.exportPanelAsOBJ(ctx, desc)
		if err != nil {
			logger.Error("ExportPanelAsOBJ failed.", "error", err)
			return metrics.OutcomeFailed
		}
		return outcome
	case *job.Unsupported:
		logger.Warn("Unknown or unsupported job kind.", "kind", desc.Tag)
		return metrics.OutcomeUnsupported
	default:
		logger.Error("Descriptor type has no handler.", "type", desc.Kind())
		return metrics.OutcomeFailed
	}
}

// exportPanelAsOBJ exports the open document named by the descriptor.
func (d *Dispatcher) exportPanelAsOBJ(ctx context.Context, desc *job.ExportPanelAsOBJ) (string, error) {
	logger := ctxlog.FromContext(ctx).With("document", desc.SourceDocumentPath)
	dest := desc.OutputPath()
	outcome := metrics.OutcomeDone

	err := d.host.Do(ctx, func(g gateway.Gateway) error {
		doc, err := g.FindOpenDocument(ctx, desc.SourceDocumentPath)
		if err != nil {
			return err
		}
		if doc == nil {
			logger.Warn("OBJ export skipped: document is not open in the host.")
			outcome = metrics.OutcomeSkipped
			return nil
		}

		if err := os.MkdirAll(desc.OutputFolder, 0o755); err != nil {
			return err
		}
		if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Could not remove previous export.", "destination", dest, "error", err)
		}

		err = g.ExportGeometryAsOBJ(ctx, doc, dest, gateway.ExportOptions{BringToFront: desc.WantsFront()})
		if errors.Is(err, gateway.ErrNoSolidGeometry) {
			logger.Warn("OBJ export skipped: no solid bodies found.")
			outcome = metrics.OutcomeSkipped
			return nil
		}
		return err
	})
	if err != nil || outcome != metrics.OutcomeDone {
		return outcome, err
	}

	// Consumers on the other side watch mtimes; make the export look fresh.
	now := time.Now()
	if err := os.Chtimes(dest, now, now); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Host reported success but wrote no file.", "destination", dest)
		} else {
			logger.Warn("Could not touch exported file.", "destination", dest, "error", err)
		}
	}
	logger.Info("✅ Exported OBJ", "destination", dest, "panel_id", desc.PanelID, "revision", desc.Revision)
	return metrics.OutcomeDone, nil
}

// handleGeometryFile imports a geometry file into the active part document,
// or into a new document when none is active.
func (d *Dispatcher) handleGeometryFile(ctx context.Context, path string) string {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Detected new geometry file.")

	var target string
	err := d.host.Do(ctx, func(g gateway.Gateway) error {
		doc, err := g.ActiveDocument(ctx)
		if err != nil {
			return err
		}
		target = "<new document>"
		if doc != nil {
			target = doc.Path
		}
		return g.ImportGeometry(ctx, doc, path)
	})
	if err != nil {
		logger.Error("Geometry import failed.", "error", err)
		return metrics.OutcomeFailed
	}

	logger.Info("✅ Geometry import complete", "file", filepath.Base(path), "into", target)
	return metrics.OutcomeDone
}
