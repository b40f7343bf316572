package sensors

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/LZNUDT/ZUPT/strapdown"
	"github.com/LZNUDT/ZUPT/trajectory"
)

// zeroProfile is an ideal (noise-free) IMU at the given rate.
func zeroProfile(rateHz float64) IMUProfile {
	return IMUProfile{Name: "ideal", RateHz: rateHz}
}

func testTrajectory(t *testing.T, rateHz float64) trajectory.Trajectory {
	t.Helper()
	sc := trajectory.Scenario{
		Lat0:  32 * math.Pi / 180,
		Lon0:  118 * math.Pi / 180,
		Alt0:  100,
		Speed: 40,
		Yaw0:  0.3,
		Legs: []trajectory.Leg{
			{Duration: 20},
			{Duration: 10, YawRate: 2 * math.Pi / 180},
			{Duration: 20},
		},
	}
	tr, err := sc.Generate(rateHz)
	test.That(t, err, test.ShouldBeNil)
	return tr
}

func TestNormalize(t *testing.T) {
	p := TacticalGrade()
	n, err := p.Normalize()
	test.That(t, err, test.ShouldBeNil)

	// 0.1 deg/sqrt(h) -> rad/sqrt(s), 1 deg/h -> rad/s, 50 ug -> m/s^2,
	// 1 mg -> m/s^2.
	test.That(t, n.GyroARW.X, test.ShouldAlmostEqual, 0.1*(math.Pi/180)/60, 1e-15)
	test.That(t, n.GyroBias.Z, test.ShouldAlmostEqual, (math.Pi/180)/3600, 1e-15)
	test.That(t, n.AccelBias.Y, test.ShouldAlmostEqual, 50*9.80665e-6, 1e-12)
	test.That(t, n.AccelFixedBias.X, test.ShouldAlmostEqual, 9.80665e-3, 1e-12)
	test.That(t, n.GyroCorrTime, test.ShouldResemble, p.GyroCorrTime)

	bad := TacticalGrade()
	bad.RateHz = 0
	_, err = bad.Normalize()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestInertialZeroNoiseMechanizes(t *testing.T) {
	// An ideal sensor stream must mechanize back onto the reference
	// trajectory within floating-point tolerance.
	tr := testTrajectory(t, 100)
	prof, err := zeroProfile(100).Normalize()
	test.That(t, err, test.ShouldBeNil)

	st, err := NewSynthesizer(1, golog.NewTestLogger(t)).Inertial(tr, prof)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(st), test.ShouldEqual, len(tr))

	s0 := tr[0]
	state := strapdown.NewState(s0.T, s0.Lat, s0.Lon, s0.Alt, s0.Vel, s0.Roll, s0.Pitch, s0.Yaw)
	for k := 0; k+1 < len(st); k++ {
		state = strapdown.Step(state, st[k].AngularRate, st[k].SpecificForce, st[k+1].T-st[k].T)
	}

	last := tr[len(tr)-1]
	test.That(t, state.Lat, test.ShouldAlmostEqual, last.Lat, 1e-12)
	test.That(t, state.Lon, test.ShouldAlmostEqual, last.Lon, 1e-12)
	test.That(t, state.Alt, test.ShouldAlmostEqual, last.Alt, 1e-7)
	test.That(t, state.Vel.Sub(last.Vel).Norm(), test.ShouldBeLessThan, 1e-7)

	_, _, yaw := state.Euler()
	test.That(t, yaw, test.ShouldAlmostEqual, last.Yaw, 1e-8)
}

func TestInertialTimestampsAndRate(t *testing.T) {
	tr := testTrajectory(t, 100)
	prof, err := zeroProfile(50).Normalize()
	test.That(t, err, test.ShouldBeNil)

	st, err := NewSynthesizer(1, golog.NewTestLogger(t)).Inertial(tr, prof)
	test.That(t, err, test.ShouldBeNil)

	// 50 Hz from a 100 Hz trajectory: every other sample, timestamps
	// strictly increasing, no duplicates.
	test.That(t, len(st), test.ShouldEqual, (len(tr)-1)/2+1)
	for i := 1; i < len(st); i++ {
		test.That(t, st[i].T, test.ShouldBeGreaterThan, st[i-1].T)
		test.That(t, st[i].T-st[i-1].T, test.ShouldAlmostEqual, 0.02, 1e-9)
	}

	// A rate that does not divide the trajectory rate is rejected.
	oddProf, err := zeroProfile(30).Normalize()
	test.That(t, err, test.ShouldBeNil)
	_, err = NewSynthesizer(1, golog.NewTestLogger(t)).Inertial(tr, oddProf)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does not divide")
}

func TestInertialReproducible(t *testing.T) {
	tr := testTrajectory(t, 100)
	prof, err := TacticalGrade().Normalize()
	test.That(t, err, test.ShouldBeNil)

	logger := golog.NewTestLogger(t)
	a, err := NewSynthesizer(99, logger).Inertial(tr, prof)
	test.That(t, err, test.ShouldBeNil)
	b, err := NewSynthesizer(99, logger).Inertial(tr, prof)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a, test.ShouldResemble, b)

	c, err := NewSynthesizer(100, logger).Inertial(tr, prof)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldNotResemble, a)
}

func TestFixZeroNoise(t *testing.T) {
	tr := testTrajectory(t, 100)
	prof := FixProfile{Name: "perfect", RateHz: 5}

	st, err := NewSynthesizer(1, golog.NewTestLogger(t)).Fix(tr, prof)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(st), test.ShouldEqual, (len(tr)-1)/20+1)

	for i, fx := range st {
		truth := tr[i*20]
		test.That(t, fx.T, test.ShouldEqual, truth.T)
		test.That(t, fx.Lat, test.ShouldEqual, truth.Lat)
		test.That(t, fx.Lon, test.ShouldEqual, truth.Lon)
		test.That(t, fx.Alt, test.ShouldEqual, truth.Alt)
		test.That(t, fx.Vel, test.ShouldResemble, truth.Vel)
	}
}

func TestFixNoiseAndStd(t *testing.T) {
	tr := testTrajectory(t, 100)
	prof := StandardFix()

	st, err := NewSynthesizer(5, golog.NewTestLogger(t)).Fix(tr, prof)
	test.That(t, err, test.ShouldBeNil)

	// Every sample carries the profile's per-axis standard deviations.
	for _, fx := range st {
		test.That(t, fx.PosStd, test.ShouldResemble, prof.PosStd)
		test.That(t, fx.VelStd, test.ShouldResemble, prof.VelStd)
	}

	// Position noise has roughly the right scale: north errors in meters.
	var sumSq float64
	for i, fx := range st {
		truth := tr[i*20]
		errN := (fx.Lat - truth.Lat) * 6378137.0
		sumSq += errN * errN
	}
	rms := math.Sqrt(sumSq / float64(len(st)))
	test.That(t, rms, test.ShouldAlmostEqual, prof.PosStd.X, prof.PosStd.X)
}

func TestFixPoint(t *testing.T) {
	fx := FixSample{Lat: math.Pi / 4, Lon: -math.Pi / 2}
	p := fx.Point()
	test.That(t, p.Lat(), test.ShouldAlmostEqual, 45, 1e-9)
	test.That(t, p.Lng(), test.ShouldAlmostEqual, -90, 1e-9)
}

func TestFixVelocityNoise(t *testing.T) {
	tr := testTrajectory(t, 100)
	prof := FixProfile{Name: "velonly", RateHz: 5, VelStd: r3.Vector{X: 0.1, Y: 0.1, Z: 0.2}}

	st, err := NewSynthesizer(8, golog.NewTestLogger(t)).Fix(tr, prof)
	test.That(t, err, test.ShouldBeNil)
	for i, fx := range st {
		truth := tr[i*20]
		// Position untouched with zero PosStd, velocity perturbed.
		test.That(t, fx.Lat, test.ShouldEqual, truth.Lat)
		test.That(t, fx.Vel, test.ShouldNotResemble, truth.Vel)
	}
}
