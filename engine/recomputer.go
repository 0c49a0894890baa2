package engine

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// RECOMPUTER
// =============================================================================

// Recomputer reloads the snapshot and recomputes derived state whenever it is
// triggered. A new trigger cancels any recompute still in flight; only the
// newest completed result is published.
type Recomputer struct {
	source  sales.Source
	options func() Options
	logger  *zap.Logger

	mu    sync.RWMutex
	state *DerivedState

	runMu      sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewRecomputer creates a recomputer. options is called on every trigger so
// that the month defaults to the current one.
func NewRecomputer(source sales.Source, options func() Options, logger *zap.Logger) *Recomputer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recomputer{source: source, options: options, logger: logger}
}

// Trigger runs a full recompute. It returns ErrSuperseded if a later trigger
// started before this one finished.
func (r *Recomputer) Trigger(ctx context.Context) (*DerivedState, error) {
	r.runMu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.generation++
	gen := r.generation
	r.cancel = cancel
	r.runMu.Unlock()
	defer cancel()

	opts := r.options()
	month := opts.month()

	snap, err := Load(ctx, r.source, month.Period())
	if err != nil {
		if ctx.Err() != nil && r.superseded(gen) {
			return nil, generic.ErrSuperseded
		}
		return nil, eris.Wrap(err, "recompute")
	}
	if opts.Month == "" {
		opts.Month = month
	}
	state := ComputeAll(snap, opts)

	r.runMu.Lock()
	defer r.runMu.Unlock()
	if gen != r.generation {
		r.logger.Debug("recompute superseded", zap.Uint64("generation", gen))
		return nil, generic.ErrSuperseded
	}
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	return state, nil
}

func (r *Recomputer) superseded(gen uint64) bool {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return gen != r.generation
}

// State returns the last published state.
func (r *Recomputer) State() (*DerivedState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == nil {
		return nil, generic.ErrNotComputed
	}
	return r.state, nil
}

// Source returns the store the recomputer loads from.
func (r *Recomputer) Source() sales.Source { return r.source }

// Options returns the options the next trigger will use.
func (r *Recomputer) Options() Options { return r.options() }
