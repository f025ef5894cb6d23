package inventory

import (
	"go.uber.org/multierr"
)

// SweepError reports holds a sweep could not expire. The holds it did expire
// stay expired; a failure to list candidates is returned as a plain error instead.
type SweepError struct {
	Failed []error
}

func (e *SweepError) Error() string {
	return multierr.Combine(e.Failed...).Error()
}

func (e *SweepError) Unwrap() []error {
	return e.Failed
}
