// Package strapdown integrates raw inertial samples into an attitude,
// velocity, and geodetic position solution at the inertial sampling rate.
// Attitude lives in a unit quaternion that is renormalized on every step;
// velocity stays in local NED meters per second while position stays in
// geodetic radians and meters, coupled through the latitude-dependent radii
// of curvature.
package strapdown

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/LZNUDT/ZUPT/geodesy"
)

// State is one navigation solution epoch.
type State struct {
	T   float64     // s
	Lat float64     // rad
	Lon float64     // rad
	Alt float64     // m
	Vel r3.Vector   // NED, m/s
	Att quat.Number // body to NED, unit norm
}

// NewState builds a State with the attitude quaternion derived from Euler
// angles.
func NewState(t, lat, lon, alt float64, vel r3.Vector, roll, pitch, yaw float64) State {
	return State{T: t, Lat: lat, Lon: lon, Alt: alt, Vel: vel, Att: FromEuler(roll, pitch, yaw)}
}

// Euler returns the state's attitude as ZYX Euler angles.
func (s State) Euler() (roll, pitch, yaw float64) {
	return ToEuler(s.Att)
}

// Step advances the state by one inertial sample: gyro is the bias-corrected
// angular rate (rad/s) and accel the bias-corrected specific force (m/s^2),
// both in the body frame, held over the period dt.
//
// The attitude update removes the Earth and transport rates seen by the
// navigation frame before integrating the quaternion, the velocity update
// adds gravity and removes the Coriolis acceleration, and the position
// update re-evaluates the radii of curvature at the current latitude. All
// frame-dependent terms are evaluated at the incoming state so the step is
// the exact inverse of the stream synthesis.
func Step(s State, gyro, accel r3.Vector, dt float64) State {
	wie := geodesy.EarthRateNED(s.Lat)
	wen := geodesy.TransportRateNED(s.Lat, s.Alt, s.Vel)
	win := wie.Add(wen)

	// Attitude: body rate relative to the navigation frame, then one
	// rotation-vector quaternion step. Renormalization is mandatory.
	wnb := gyro.Sub(RotateBack(s.Att, win))
	att := Normalize(quat.Mul(s.Att, FromRotationVector(wnb.Mul(dt))))

	// Velocity: specific force into NED at the incoming attitude, plus
	// gravity (down positive), minus Coriolis and transport acceleration.
	fn := Rotate(s.Att, accel)
	grav := r3.Vector{Z: geodesy.Gravity(s.Lat, s.Alt)}
	coriolis := wie.Mul(2).Add(wen).Cross(s.Vel)
	vel := s.Vel.Add(fn.Add(grav).Sub(coriolis).Mul(dt))

	// Position: curvilinear step with the incoming velocity.
	lat, lon, alt := geodesy.StepPosition(s.Lat, s.Lon, s.Alt, s.Vel, dt)

	return State{T: s.T + dt, Lat: lat, Lon: lon, Alt: alt, Vel: vel, Att: att}
}
