// Package embedder wraps the committed embedding backend with retry,
// a deterministic fallback chain, and a bounded persistent cache.
//
// Failure handling is local: a transient backend failure is retried
// once after a fixed short delay; a persistent failure falls through
// the remaining backends in priority order; if everything fails, a
// hash-derived vector is synthesized and the result tagged degraded.
// Backend failures never surface past this package except as that
// degraded flag.
//
// Every vector is validated for shape and finiteness against the
// committed dimension before it reaches the caller or the cache. Empty
// input is an explicit error, never a silent zero vector.
package embedder
