// Package fusion wires the pipeline together: it synthesizes raw streams
// from a reference trajectory, aligns them onto a common working interval,
// and drives the strapdown mechanization and error-state filter sample by
// sample, producing a corrected navigation series with per-sample covariance.
// Independent sensor configurations are evaluated in parallel, each run
// owning all of its mutable state.
package fusion

import (
	"github.com/pkg/errors"

	"github.com/LZNUDT/ZUPT/sensors"
)

// ErrNoOverlap reports streams whose usable intervals do not overlap by at
// least one fix period. It is a configuration error, never retried.
var ErrNoOverlap = errors.New("streams do not overlap by at least one fix period")

// Synchronize trims the two streams onto a working interval where every fix
// lands inside the inertial envelope: the inertial head is dropped up to the
// first sample after the first fix, and the fix tail is dropped down to the
// last fix before the final inertial sample. Both operations are pure
// prefix/suffix drops; nothing is interpolated or reordered.
func Synchronize(inertial sensors.InertialStream, fixes sensors.FixStream) (sensors.InertialStream, sensors.FixStream, error) {
	if len(inertial) == 0 || len(fixes) < 2 {
		return nil, nil, errors.Errorf("synchronization needs a non-empty inertial stream and at least 2 fixes, got %d and %d",
			len(inertial), len(fixes))
	}

	fixPeriod := fixes[1].T - fixes[0].T

	head := 0
	for head < len(inertial) && inertial[head].T <= fixes[0].T {
		head++
	}
	inertial = inertial[head:]
	if len(inertial) == 0 {
		return nil, nil, errors.Wrap(ErrNoOverlap, "no inertial samples after the first fix")
	}

	tail := len(fixes)
	for tail > 0 && fixes[tail-1].T >= inertial[len(inertial)-1].T {
		tail--
	}
	fixes = fixes[:tail]
	if len(fixes) == 0 {
		return nil, nil, errors.Wrap(ErrNoOverlap, "no fixes before the last inertial sample")
	}

	if fixes[len(fixes)-1].T-inertial[0].T < fixPeriod {
		return nil, nil, ErrNoOverlap
	}
	return inertial, fixes, nil
}
