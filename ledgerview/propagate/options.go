package propagate

import (
	"io"
	"log/slog"

	"github.com/arthur-debert/ledgerview/types"
)

// Invalidator is implemented by read-only caches derived from record data
// that the propagator cannot patch in place: aggregate summaries and
// single-record details.
type Invalidator interface {
	// InvalidateSummaries drops aggregates computed over the entity's records
	InvalidateSummaries(entity types.EntityType)
	// InvalidateDetail drops the cached detail snapshot of one record
	InvalidateDetail(ref types.RecordRef)
}

// Option is a function that modifies Propagator configuration
type Option func(*Propagator)

// WithInvalidator registers a cache to invalidate after mutations
func WithInvalidator(inv Invalidator) Option {
	return func(p *Propagator) {
		p.invalidators = append(p.invalidators, inv)
	}
}

// WithLogger sets the logger used for debug traces of each propagation
func WithLogger(logger *slog.Logger) Option {
	return func(p *Propagator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFilterMatching makes Insert skip views whose filters reject the record
// and Update drop rows that stop matching their view's filters. By default
// every view of the record's entity type receives the mutation.
func WithFilterMatching(enabled bool) Option {
	return func(p *Propagator) {
		p.filterMatching = enabled
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
