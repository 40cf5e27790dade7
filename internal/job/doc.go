// Package job defines the job descriptors that external writers drop into the
// jobs hot folder.
//
// A descriptor is a small JSON object identified by its "Kind" tag. The set
// of kinds is closed: every descriptor is either a known variant such as
// ExportPanelAsOBJ or the explicit Unsupported variant, so callers resolve
// work with an exhaustive type switch instead of comparing strings.
//
// Parsing happens in two phases. The first phase peeks at the tag only; an
// unknown tag produces an Unsupported descriptor rather than an error, so
// the caller can log and skip it. The second phase fully decodes a known
// variant, applies defaults, and validates it. Decode failures and
// validation failures are reported with distinct error types.
package job
