package trajectory

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/LZNUDT/ZUPT/geodesy"
)

// Leg is one piecewise-constant segment of a scenario: the vehicle holds its
// speed and turns at a constant yaw rate (zero for straight flight).
type Leg struct {
	Duration float64 // s
	YawRate  float64 // rad/s
}

// Scenario describes a level constant-speed motion profile as a sequence of
// legs starting from a geodetic origin. It exists so evaluation runs have a
// kinematically consistent ground truth without loading a recorded profile.
type Scenario struct {
	Lat0  float64 // rad
	Lon0  float64 // rad
	Alt0  float64 // m
	Speed float64 // m/s, ground speed held for the whole scenario
	Yaw0  float64 // rad, initial heading
	Legs  []Leg
}

// Generate integrates the scenario at the given sample rate (Hz) into a
// uniform-rate trajectory. Position is advanced with the same
// curvilinear forward-Euler step the mechanization uses, so a noise-free
// sensor stream derived from the result mechanizes back onto it exactly.
func (sc Scenario) Generate(rate float64) (Trajectory, error) {
	if rate <= 0 {
		return nil, errors.Errorf("scenario sample rate must be positive, got %f", rate)
	}
	if len(sc.Legs) == 0 {
		return nil, errors.New("scenario has no legs")
	}
	var total float64
	for i, leg := range sc.Legs {
		if leg.Duration <= 0 {
			return nil, errors.Errorf("leg %d duration must be positive, got %f", i, leg.Duration)
		}
		total += leg.Duration
	}

	dt := 1 / rate
	n := int(math.Floor(total*rate)) + 1
	tr := make(Trajectory, 0, n)

	lat, lon, alt, yaw := sc.Lat0, sc.Lon0, sc.Alt0, sc.Yaw0
	legIx, legEnd := 0, sc.Legs[0].Duration
	for k := 0; k < n; k++ {
		t := float64(k) * dt
		for legIx < len(sc.Legs)-1 && t >= legEnd {
			legIx++
			legEnd += sc.Legs[legIx].Duration
		}
		vel := r3.Vector{
			X: sc.Speed * math.Cos(yaw),
			Y: sc.Speed * math.Sin(yaw),
		}
		tr = append(tr, Sample{
			T: t, Lat: lat, Lon: lon, Alt: alt,
			Vel: vel, Yaw: yaw,
		})

		lat, lon, alt = geodesy.StepPosition(lat, lon, alt, vel, dt)
		yaw += sc.Legs[legIx].YawRate * dt
	}
	return tr, nil
}
