// Package backend provides the embedding backends and the registry
// that probes, validates, and commits exactly one of them per process.
//
// Candidates are tried in a declarative priority order (typically a
// remote provider, then a local statistical approximation, then a
// deterministic hash synthesizer as absolute last resort). The first
// candidate whose probe yields a valid vector is committed; its
// dimension becomes the process-wide embedding dimension. Hot-swapping
// a backend mid-run is not supported.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// Backend names.
const (
	NameRemote  = "remote"
	NameLexical = "lexical"
	NameHash    = "hash"
)

// ProbeText is the fixed string used to validate every candidate
// backend during registry initialization.
const ProbeText = "the quick brown fox jumps over the lazy dog"

// Backend generates embedding vectors of a declared, fixed dimension.
type Backend interface {
	// Name identifies the backend in descriptors and result provenance.
	Name() string

	// Dimension returns the backend's declared vector dimension.
	Dimension() int

	// Generate embeds a single text. Implementations classify
	// recoverable failures by wrapping ErrTransient.
	Generate(ctx context.Context, text string) ([]float32, error)
}

// ErrTransient marks a backend failure worth retrying once (rate
// limiting, transient network errors). Non-transient failures move the
// generator straight to the next backend in the priority list.
var ErrTransient = errors.New("transient backend failure")

// Status describes the probe outcome for one candidate.
type Status string

const (
	StatusUntested  Status = "untested"
	StatusValidated Status = "validated"
	StatusFailed    Status = "failed"
)

// Descriptor is the registry's record of one candidate backend.
type Descriptor struct {
	Name      string
	Priority  int
	Dimension int
	Status    Status
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (priority %d, dim %d, %s)", d.Name, d.Priority, d.Dimension, d.Status)
}
