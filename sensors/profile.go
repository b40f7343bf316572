// Package sensors turns a noise-free reference trajectory into the raw
// measurement streams a real sensor suite would produce: an inertial stream
// of specific force and angular rate at the IMU rate, and a position-fix
// stream at the receiver rate. Sensor imperfections are described by error
// profiles in manufacturer datasheet units and normalized to SI exactly once
// before any synthesis.
package sensors

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Datasheet-to-SI conversion factors.
const (
	degPerSqrtHour = (math.Pi / 180) / 60   // deg/sqrt(h) -> rad/sqrt(s)
	degPerHour     = (math.Pi / 180) / 3600 // deg/h -> rad/s
	microG         = 9.80665e-6             // ug -> m/s^2, ug/sqrt(Hz) -> (m/s^2)*sqrt(s)
	milliG         = 9.80665e-3             // mg -> m/s^2
)

// IMUProfile describes an inertial sensor class in manufacturer units, one
// value per body axis.
type IMUProfile struct {
	Name   string
	RateHz float64

	GyroARW       r3.Vector // angle random walk, deg/sqrt(h)
	GyroBias      r3.Vector // bias instability, deg/h
	GyroCorrTime  r3.Vector // correlation time, s
	GyroFixedBias r3.Vector // turn-on bias, deg/h

	AccelVRW       r3.Vector // velocity random walk, ug/sqrt(Hz)
	AccelBias      r3.Vector // bias instability, ug
	AccelCorrTime  r3.Vector // correlation time, s
	AccelFixedBias r3.Vector // turn-on bias, mg
}

// NormalizedIMU is an IMUProfile converted to SI units. It is produced by
// Normalize exactly once per profile and never mutated afterwards.
type NormalizedIMU struct {
	Name   string
	RateHz float64

	GyroARW       r3.Vector // rad/sqrt(s)
	GyroBias      r3.Vector // rad/s
	GyroCorrTime  r3.Vector // s
	GyroFixedBias r3.Vector // rad/s

	AccelVRW       r3.Vector // (m/s^2)*sqrt(s)
	AccelBias      r3.Vector // m/s^2
	AccelCorrTime  r3.Vector // s
	AccelFixedBias r3.Vector // m/s^2
}

func scale(v r3.Vector, k float64) r3.Vector {
	return r3.Vector{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Normalize converts the profile's manufacturer units to SI. This is the
// single place datasheet units are interpreted; everything downstream works
// in SI.
func (p IMUProfile) Normalize() (NormalizedIMU, error) {
	if p.RateHz <= 0 {
		return NormalizedIMU{}, errors.Errorf("IMU profile %q needs a positive sampling rate, got %f", p.Name, p.RateHz)
	}
	return NormalizedIMU{
		Name:   p.Name,
		RateHz: p.RateHz,

		GyroARW:       scale(p.GyroARW, degPerSqrtHour),
		GyroBias:      scale(p.GyroBias, degPerHour),
		GyroCorrTime:  p.GyroCorrTime,
		GyroFixedBias: scale(p.GyroFixedBias, degPerHour),

		AccelVRW:       scale(p.AccelVRW, microG),
		AccelBias:      scale(p.AccelBias, microG),
		AccelCorrTime:  p.AccelCorrTime,
		AccelFixedBias: scale(p.AccelFixedBias, milliG),
	}, nil
}

// FixProfile describes the position-fix source. Standard deviations are
// already SI (meters and meters per second, per NED axis).
type FixProfile struct {
	Name   string
	RateHz float64
	PosStd r3.Vector // m, NED
	VelStd r3.Vector // m/s, NED
}

// Validate checks the fix profile preconditions.
func (p FixProfile) Validate() error {
	if p.RateHz <= 0 {
		return errors.Errorf("fix profile %q needs a positive sampling rate, got %f", p.Name, p.RateHz)
	}
	return nil
}

// TacticalGrade is a representative tactical-grade IMU error profile.
func TacticalGrade() IMUProfile {
	return IMUProfile{
		Name:   "tactical",
		RateHz: 100,

		GyroARW:       r3.Vector{X: 0.1, Y: 0.1, Z: 0.1},
		GyroBias:      r3.Vector{X: 1, Y: 1, Z: 1},
		GyroCorrTime:  r3.Vector{X: 300, Y: 300, Z: 300},
		GyroFixedBias: r3.Vector{X: 1, Y: 1, Z: 1},

		AccelVRW:       r3.Vector{X: 50, Y: 50, Z: 50},
		AccelBias:      r3.Vector{X: 50, Y: 50, Z: 50},
		AccelCorrTime:  r3.Vector{X: 300, Y: 300, Z: 300},
		AccelFixedBias: r3.Vector{X: 1, Y: 1, Z: 1},
	}
}

// ConsumerGrade is a representative MEMS consumer-grade IMU error profile.
func ConsumerGrade() IMUProfile {
	return IMUProfile{
		Name:   "consumer",
		RateHz: 100,

		GyroARW:       r3.Vector{X: 3, Y: 3, Z: 3},
		GyroBias:      r3.Vector{X: 80, Y: 80, Z: 80},
		GyroCorrTime:  r3.Vector{X: 100, Y: 100, Z: 100},
		GyroFixedBias: r3.Vector{X: 30, Y: 30, Z: 30},

		AccelVRW:       r3.Vector{X: 300, Y: 300, Z: 300},
		AccelBias:      r3.Vector{X: 1000, Y: 1000, Z: 1000},
		AccelCorrTime:  r3.Vector{X: 100, Y: 100, Z: 100},
		AccelFixedBias: r3.Vector{X: 10, Y: 10, Z: 10},
	}
}

// StandardFix is a representative single-frequency GNSS fix profile.
func StandardFix() FixProfile {
	return FixProfile{
		Name:   "gnss",
		RateHz: 5,
		PosStd: r3.Vector{X: 2, Y: 2, Z: 4},
		VelStd: r3.Vector{X: 0.1, Y: 0.1, Z: 0.2},
	}
}
