package trajectory

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestValidate(t *testing.T) {
	tr := Trajectory{{T: 0}, {T: 0.1}, {T: 0.2}}
	test.That(t, tr.Validate(), test.ShouldBeNil)

	test.That(t, Trajectory{{T: 0}}.Validate(), test.ShouldNotBeNil)

	dup := Trajectory{{T: 0}, {T: 0.1}, {T: 0.1}}
	err := dup.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "strictly increase")
}

func TestResample(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	values := []float64{0, 10, 20, 30}

	out, err := Resample(times, values, []float64{0, 0.5, 1.5, 3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []float64{0, 5, 15, 30})

	// Exact hits are returned unchanged.
	out, err = Resample(times, values, []float64{2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out[0], test.ShouldEqual, 20)
}

func TestResampleBoundary(t *testing.T) {
	times := []float64{0, 1, 2}
	values := []float64{0, 1, 4}

	_, err := Resample(times, values, []float64{-0.01})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "outside series range")

	_, err = Resample(times, values, []float64{2.01})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Resample(times, []float64{0, 1}, []float64{1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestScenarioGenerate(t *testing.T) {
	sc := Scenario{
		Lat0:  32.0 * math.Pi / 180,
		Lon0:  118.0 * math.Pi / 180,
		Alt0:  100,
		Speed: 50,
		Legs: []Leg{
			{Duration: 10},
			{Duration: 5, YawRate: 3 * math.Pi / 180},
			{Duration: 10},
		},
	}
	tr, err := sc.Generate(100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tr.Validate(), test.ShouldBeNil)
	test.That(t, len(tr), test.ShouldEqual, 2501)

	start, end := tr.Span()
	test.That(t, start, test.ShouldEqual, 0)
	test.That(t, end, test.ShouldAlmostEqual, 25, 1e-9)

	// Straight leg holds heading; the turn leg sweeps 15 degrees.
	test.That(t, tr[500].Yaw, test.ShouldEqual, tr[0].Yaw)
	test.That(t, tr[2000].Yaw, test.ShouldAlmostEqual, 15*math.Pi/180, 1e-6)

	// Constant ground speed throughout.
	for _, s := range []Sample{tr[0], tr[1200], tr[2400]} {
		test.That(t, s.Vel.Norm(), test.ShouldAlmostEqual, 50, 1e-9)
	}

	// Northbound start moves latitude north, altitude level.
	test.That(t, tr[1000].Lat, test.ShouldBeGreaterThan, tr[0].Lat)
	test.That(t, tr[1000].Alt, test.ShouldAlmostEqual, 100, 1e-9)
}

func TestScenarioGenerateErrors(t *testing.T) {
	_, err := Scenario{Speed: 1, Legs: []Leg{{Duration: 1}}}.Generate(0)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Scenario{Speed: 1}.Generate(10)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Scenario{Speed: 1, Legs: []Leg{{Duration: -1}}}.Generate(10)
	test.That(t, err, test.ShouldNotBeNil)
}
