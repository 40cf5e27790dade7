// Package config defines the runtime configuration of panelsync and loads
// it from an optional HCL file. Values are layered: built-in defaults, then
// the file, then command-line flags applied by the cli package.
package config
