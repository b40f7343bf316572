package fusion

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/LZNUDT/ZUPT/sensors"
)

func inertialAt(times ...float64) sensors.InertialStream {
	st := make(sensors.InertialStream, len(times))
	for i, t := range times {
		st[i].T = t
	}
	return st
}

func fixesAt(times ...float64) sensors.FixStream {
	st := make(sensors.FixStream, len(times))
	for i, t := range times {
		st[i].T = t
	}
	return st
}

func rangeTimes(from, to, step float64) []float64 {
	var ts []float64
	for t := from; t <= to+step/2; t += step {
		ts = append(ts, t)
	}
	return ts
}

func TestSynchronizeAlreadyAligned(t *testing.T) {
	// Fixes at 0..10 s, inertial 0.3..10.1 s: the inertial stream already
	// starts after the first fix and the last fix already precedes the
	// inertial end, so both come back unchanged.
	inertial := inertialAt(rangeTimes(0.3, 10.1, 0.1)...)
	fixes := fixesAt(rangeTimes(0, 10, 1)...)

	outI, outF, err := Synchronize(inertial, fixes)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outI[0].T, test.ShouldEqual, 0.3)
	test.That(t, len(outI), test.ShouldEqual, len(inertial))
	test.That(t, outF[len(outF)-1].T, test.ShouldEqual, 10.0)
	test.That(t, len(outF), test.ShouldEqual, len(fixes))
}

func TestSynchronizeTrimsHead(t *testing.T) {
	// Inertial samples at and before the first fix are dropped; the stream
	// must start at the first timestamp strictly after it.
	inertial := inertialAt(-0.05, 0.0, 0.05, 0.15, 0.25, 0.35, 10.0, 10.1)
	fixes := fixesAt(rangeTimes(0, 10, 1)...)

	outI, outF, err := Synchronize(inertial, fixes)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outI[0].T, test.ShouldEqual, 0.05)
	test.That(t, outF[len(outF)-1].T, test.ShouldEqual, 10.0)
}

func TestSynchronizeTrimsTail(t *testing.T) {
	// Fixes at or after the last inertial sample are dropped.
	inertial := inertialAt(rangeTimes(0.3, 5.0, 0.1)...)
	fixes := fixesAt(rangeTimes(0, 10, 1)...)

	_, outF, err := Synchronize(inertial, fixes)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outF[len(outF)-1].T, test.ShouldEqual, 4.0)
}

func TestSynchronizeFailures(t *testing.T) {
	_, _, err := Synchronize(nil, fixesAt(0, 1))
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = Synchronize(inertialAt(0.1, 0.2), fixesAt(5))
	test.That(t, err, test.ShouldNotBeNil)

	// Inertial entirely before the fixes.
	_, _, err = Synchronize(inertialAt(0.1, 0.2, 0.3), fixesAt(rangeTimes(5, 10, 1)...))
	test.That(t, errors.Is(err, ErrNoOverlap), test.ShouldBeTrue)

	// Fixes entirely after the inertial envelope.
	_, _, err = Synchronize(inertialAt(rangeTimes(0, 1, 0.1)...), fixesAt(rangeTimes(5, 10, 1)...))
	test.That(t, errors.Is(err, ErrNoOverlap), test.ShouldBeTrue)

	// Overlap shorter than one fix period.
	_, _, err = Synchronize(inertialAt(0.1, 0.2, 0.3, 0.4), fixesAt(rangeTimes(0, 10, 1)...))
	test.That(t, errors.Is(err, ErrNoOverlap), test.ShouldBeTrue)
}
