package types

import "errors"

// Engine failure taxonomy. Backend-level failures are recovered inside
// the embedding generator's fallback chain and surface only as a
// degraded flag; the errors below are the ones callers see.
var (
	// ErrInvalidInput reports an empty or malformed query or text.
	// Invalid input is always an explicit error, never a silent zero
	// vector or empty result.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackendUnavailable reports that a candidate backend failed its
	// probe or generation, or (in strict mode) that every candidate did.
	ErrBackendUnavailable = errors.New("embedding backend unavailable")

	// ErrDimensionMismatch reports a stored or generated vector whose
	// length disagrees with the committed dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroVectorRejected reports a generated vector that was all-zero
	// or contained non-finite values. Such vectors are never persisted.
	ErrZeroVectorRejected = errors.New("zero or non-finite vector rejected")

	// ErrCorpusStatsInsufficient reports a corpus vocabulary below the
	// configured minimum; fallback ranking over it is untrustworthy.
	ErrCorpusStatsInsufficient = errors.New("corpus statistics insufficient")

	// ErrCacheIO reports an unreadable or unwritable cache file. It is
	// non-fatal; the cache is bypassed.
	ErrCacheIO = errors.New("cache I/O error")
)

// Result validation errors.
var (
	ErrInvalidChunkID = errors.New("invalid chunk ID")
	ErrInvalidRank    = errors.New("rank must be >= 1")
	ErrInvalidScore   = errors.New("similarity score must be between -1 and 1")
	ErrUnknownMethod  = errors.New("unknown search method")
)
