package tracking

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotPersisted is returned when a record could not be written to any
// backend. The in-process copy is still updated.
var ErrNotPersisted = errors.New("tracking: record not persisted to any backend")

// WriteResult reports which backends accepted a write.
type WriteResult struct {
	PrimaryOK  bool
	FallbackOK bool
}

// Persisted reports whether at least one backend accepted the write.
func (w WriteResult) Persisted() bool { return w.PrimaryOK || w.FallbackOK }

// writeBoth writes rec to the primary backend and then, regardless of the
// outcome, to the fallback. Absent backends count as failed writes. It
// fails only when neither write succeeded.
func writeBoth(ctx context.Context, primary, fallback Backend, rec *Record) (WriteResult, error) {
	var res WriteResult
	var errs []error

	if primary != nil {
		if err := primary.Write(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", primary.Name(), err))
		} else {
			res.PrimaryOK = true
		}
	}
	if fallback != nil {
		if err := fallback.Write(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", fallback.Name(), err))
		} else {
			res.FallbackOK = true
		}
	}

	if !res.Persisted() {
		return res, errors.Join(append([]error{ErrNotPersisted}, errs...)...)
	}
	return res, nil
}
