// Package layout resolves the fixed directory tree of a hot folder.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultImportVendor = "3DR"
	DefaultExportVendor = "Inventor"

	// JobPattern and GeometryPattern are the globs the two watched folders use.
	JobPattern      = "*.json"
	GeometryPattern = "*.igs"

	logFileName         = "panelsync.log"
	latestOBJName       = "latest.obj"
	newDocumentBaseName = "latest.ipt"
)

// Layout is the resolved directory tree under one root. It is a pure value;
// only Ensure touches the filesystem.
type Layout struct {
	Root        string
	Jobs        string // job descriptors (*.json)
	GeometryIn  string // geometry exported by the other application (*.igs)
	GeometryOut string // OBJ exports written by this side
	Projects    string // host documents created on import
	Scripts     string // automation snippets for the other application
	Logs        string
}

// New derives the tree under root. importVendor owns the geometry that
// arrives, exportVendor owns the OBJ output and created documents. Empty
// vendor names fall back to the defaults.
func New(root, importVendor, exportVendor string) Layout {
	if importVendor == "" {
		importVendor = DefaultImportVendor
	}
	if exportVendor == "" {
		exportVendor = DefaultExportVendor
	}
	return Layout{
		Root:        root,
		Jobs:        filepath.Join(root, "jobs"),
		GeometryIn:  filepath.Join(root, importVendor, "exports", "iges"),
		GeometryOut: filepath.Join(root, exportVendor, "exports", "obj"),
		Projects:    filepath.Join(root, exportVendor, "Projects"),
		Scripts:     filepath.Join(root, "scripts"),
		Logs:        filepath.Join(root, "logs"),
	}
}

// DefaultRoot derives the hot-folder root from the current user profile.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve user profile: %w", err)
	}
	return filepath.Join(home, "OneDrive", "Desktop", "PanelSyncHot"), nil
}

// Dirs lists every directory of the tree in creation order.
func (l Layout) Dirs() []string {
	return []string{l.Jobs, l.GeometryIn, l.GeometryOut, l.Projects, l.Scripts, l.Logs}
}

// Ensure creates every directory of the tree. It is idempotent.
func (l Layout) Ensure() error {
	if l.Root == "" {
		return errors.New("layout: root directory is empty")
	}
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("layout: cannot create %s: %w", dir, err)
		}
	}
	return nil
}

// LogFilePath is the append-only log written by this process.
func (l Layout) LogFilePath() string { return filepath.Join(l.Logs, logFileName) }

// LatestOBJPath is the canonical target of ad-hoc exports.
func (l Layout) LatestOBJPath() string { return filepath.Join(l.GeometryOut, latestOBJName) }

// NewDocumentPath is where the host saves a document it creates to receive
// imported geometry.
func (l Layout) NewDocumentPath() string { return filepath.Join(l.Projects, newDocumentBaseName) }
