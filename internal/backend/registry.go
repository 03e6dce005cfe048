package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dshills/memctx-mcp/internal/vectormath"
	"github.com/dshills/memctx-mcp/pkg/types"
)

// State is the registry initialization state machine.
type State int

const (
	StateUninitialized State = iota
	StateProbing
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProbing:
		return "probing"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrAlreadyInitialized reports a second Initialize call. Commitment is
// immutable until process restart.
var ErrAlreadyInitialized = errors.New("backend registry already initialized")

// Registry probes candidate backends in priority order and commits to
// the first one that validates. The committed backend and its dimension
// are fixed for the process lifetime.
type Registry struct {
	mu sync.Mutex

	candidates  []Backend
	descriptors []Descriptor
	strict      bool

	state     State
	committed Backend
	degraded  bool
}

// NewRegistry creates a registry over candidates in priority order. In
// strict mode, total probe failure is an error; in permissive mode the
// hash synthesizer is committed and the session marked degraded.
func NewRegistry(candidates []Backend, strict bool) *Registry {
	descriptors := make([]Descriptor, len(candidates))
	for i, c := range candidates {
		descriptors[i] = Descriptor{
			Name:      c.Name(),
			Priority:  i,
			Dimension: c.Dimension(),
			Status:    StatusUntested,
		}
	}

	return &Registry{
		candidates:  candidates,
		descriptors: descriptors,
		strict:      strict,
	}
}

// Initialize runs the probe sequence and commits a backend. It may be
// called exactly once per registry.
func (r *Registry) Initialize(ctx context.Context) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateUninitialized {
		return nil, fmt.Errorf("%w: state is %s", ErrAlreadyInitialized, r.state)
	}
	r.state = StateProbing

	for i, candidate := range r.candidates {
		if err := ctx.Err(); err != nil {
			r.state = StateFailed
			return nil, err
		}

		if err := r.probe(ctx, candidate); err != nil {
			r.descriptors[i].Status = StatusFailed
			log.Printf("backend %s failed probe: %v", candidate.Name(), err)
			continue
		}

		r.descriptors[i].Status = StatusValidated
		r.committed = candidate
		r.degraded = candidate.Name() == NameHash
		r.state = StateCommitted
		log.Printf("committed backend %s (dimension %d, degraded %v)",
			candidate.Name(), candidate.Dimension(), r.degraded)
		return candidate, nil
	}

	if r.strict {
		r.state = StateFailed
		return nil, fmt.Errorf("%w: no candidate backend validated", types.ErrBackendUnavailable)
	}

	// Permissive mode: fall back to the hash synthesizer even when it
	// was not in the candidate list. The session is degraded.
	r.committed = NewHash(0)
	r.degraded = true
	r.state = StateCommitted
	log.Printf("no backend validated, committed hash synthesizer (degraded session)")
	return r.committed, nil
}

// probe generates a vector for the fixed probe string and validates its
// shape, finiteness, and non-zeroness against the declared dimension.
func (r *Registry) probe(ctx context.Context, b Backend) error {
	vector, err := b.Generate(ctx, ProbeText)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrBackendUnavailable, b.Name(), err)
	}
	if err := vectormath.Validate(vector, b.Dimension()); err != nil {
		return fmt.Errorf("probe vector invalid for %s: %w", b.Name(), err)
	}
	return nil
}

// Committed returns the committed backend, or nil before commitment.
func (r *Registry) Committed() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

// Dimension returns the process-wide embedding dimension, or 0 before
// commitment.
func (r *Registry) Dimension() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.committed == nil {
		return 0
	}
	return r.committed.Dimension()
}

// Degraded reports whether the session is running on the hash
// synthesizer.
func (r *Registry) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// State returns the current initialization state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Descriptors returns a copy of the candidate records with their probe
// outcomes.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Fallbacks returns the candidates below the committed backend in
// priority order. The generator walks this list when the committed
// backend fails at generation time.
func (r *Registry) Fallbacks() []Backend {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.committed == nil {
		return nil
	}

	var out []Backend
	found := false
	for _, c := range r.candidates {
		if found {
			out = append(out, c)
		}
		if c == r.committed {
			found = true
		}
	}
	return out
}
