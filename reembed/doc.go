// Package reembed migrates the vector index of indexed jobs to a new
// embedding model version.
//
// The store keeps one embedding per chunk per model version, so a
// migration writes the new version alongside the old one; queries pick a
// version through their filter. The package supports batch processing,
// progress reporting and retry with exponential backoff for embedding
// calls.
package reembed
