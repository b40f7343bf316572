// Package trajectory defines the reference ground-truth motion profile the
// rest of the pipeline consumes: geodetic position, NED velocity, and Euler
// attitude on a strictly increasing time base. It also provides monotone
// resampling onto a target time base and piecewise scenario generation for
// evaluation runs.
package trajectory

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Sample is one ground-truth navigation epoch.
type Sample struct {
	T     float64   // s
	Lat   float64   // rad
	Lon   float64   // rad
	Alt   float64   // m
	Vel   r3.Vector // NED, m/s
	Roll  float64   // rad
	Pitch float64   // rad
	Yaw   float64   // rad
}

// Trajectory is an ordered sequence of ground-truth samples.
type Trajectory []Sample

// Validate checks the trajectory invariants: at least two samples and
// strictly increasing timestamps.
func (tr Trajectory) Validate() error {
	if len(tr) < 2 {
		return errors.Errorf("trajectory needs at least 2 samples, got %d", len(tr))
	}
	for i := 1; i < len(tr); i++ {
		if tr[i].T <= tr[i-1].T {
			return errors.Errorf("trajectory timestamps must strictly increase, sample %d (t=%f) follows t=%f",
				i, tr[i].T, tr[i-1].T)
		}
	}
	return nil
}

// Times returns the trajectory's time base.
func (tr Trajectory) Times() []float64 {
	ts := make([]float64, len(tr))
	for i, s := range tr {
		ts[i] = s.T
	}
	return ts
}

// Span returns the first and last timestamps.
func (tr Trajectory) Span() (start, end float64) {
	return tr[0].T, tr[len(tr)-1].T
}

// Resample linearly interpolates the series (times, values) onto the target
// time base. times must be strictly increasing and the same length as values.
// Any target instant outside [times[0], times[len-1]] is a boundary error;
// the series is never extrapolated.
func Resample(times, values, target []float64) ([]float64, error) {
	if len(times) != len(values) {
		return nil, errors.Errorf("series length mismatch: %d times vs %d values", len(times), len(values))
	}
	if len(times) < 2 {
		return nil, errors.Errorf("resampling needs at least 2 samples, got %d", len(times))
	}
	out := make([]float64, len(target))
	for i, t := range target {
		if t < times[0] || t > times[len(times)-1] {
			return nil, errors.Errorf("time %f outside series range [%f, %f]", t, times[0], times[len(times)-1])
		}
		ix := sort.SearchFloat64s(times, t)
		if ix < len(times) && times[ix] == t {
			out[i] = values[ix]
			continue
		}
		// times[ix-1] < t < times[ix]
		f := (t - times[ix-1]) / (times[ix] - times[ix-1])
		out[i] = values[ix-1] + f*(values[ix]-values[ix-1])
	}
	return out, nil
}
