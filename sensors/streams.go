package sensors

import (
	"math"

	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
)

// InertialSample is one raw IMU epoch in the body frame.
type InertialSample struct {
	T             float64   // s
	AngularRate   r3.Vector // rad/s
	SpecificForce r3.Vector // m/s^2
}

// InertialStream is a time-ordered raw IMU sequence.
type InertialStream []InertialSample

// Times returns the stream's time base.
func (st InertialStream) Times() []float64 {
	ts := make([]float64, len(st))
	for i, s := range st {
		ts[i] = s.T
	}
	return ts
}

// FixSample is one raw position fix with its per-axis standard deviations.
type FixSample struct {
	T      float64   // s
	Lat    float64   // rad
	Lon    float64   // rad
	Alt    float64   // m
	Vel    r3.Vector // NED, m/s
	PosStd r3.Vector // m, NED
	VelStd r3.Vector // m/s, NED
}

// Point returns the fix position as a geodetic point in degrees.
func (s FixSample) Point() *geo.Point {
	return geo.NewPoint(s.Lat*180/math.Pi, s.Lon*180/math.Pi)
}

// FixStream is a time-ordered raw fix sequence.
type FixStream []FixSample

// Times returns the stream's time base.
func (st FixStream) Times() []float64 {
	ts := make([]float64, len(st))
	for i, s := range st {
		ts[i] = s.T
	}
	return ts
}
