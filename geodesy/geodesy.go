// Package geodesy provides the WGS-84 Earth model quantities the strapdown
// mechanization and error-state filter need: radii of curvature, normal
// gravity, and the Earth-rotation and transport rates expressed in the local
// NED frame.
package geodesy

import (
	"math"

	"github.com/golang/geo/r3"
)

// WGS-84 defining parameters.
const (
	SemiMajorAxis = 6378137.0           // a, meters
	Flattening    = 1.0 / 298.257223563 // f
	EarthRate     = 7.292115e-5         // omega_ie, rad/s
	GM            = 3.986004418e14      // m^3/s^2
)

// Derived parameters.
var (
	SemiMinorAxis       = SemiMajorAxis * (1 - Flattening)
	EccentricitySquared = Flattening * (2 - Flattening)
)

// RadiiOfCurvature returns the meridian (north-south) and transverse
// (east-west) radii of curvature at the given geodetic latitude in radians.
// Both vary with latitude and must be re-evaluated wherever the ellipsoid is
// being tracked, not cached at a reference latitude.
func RadiiOfCurvature(lat float64) (meridian, transverse float64) {
	s := math.Sin(lat)
	den := 1 - EccentricitySquared*s*s
	transverse = SemiMajorAxis / math.Sqrt(den)
	meridian = SemiMajorAxis * (1 - EccentricitySquared) / math.Pow(den, 1.5)
	return meridian, transverse
}

// Gravity returns the magnitude of normal gravity at the given geodetic
// latitude (radians) and altitude (meters), positive down. Somigliana model
// on the ellipsoid with a second-order free-air height correction.
func Gravity(lat, alt float64) float64 {
	s2 := math.Sin(lat) * math.Sin(lat)
	g0 := 9.7803253359 * (1 + 0.001931853*s2) / math.Sqrt(1-EccentricitySquared*s2)
	m := EarthRate * EarthRate * SemiMajorAxis * SemiMajorAxis * SemiMinorAxis / GM
	return g0 * (1 -
		(2/SemiMajorAxis)*(1+Flattening+m-2*Flattening*s2)*alt +
		3*alt*alt/(SemiMajorAxis*SemiMajorAxis))
}

// EarthRateNED returns the Earth rotation rate resolved in the local NED
// frame at the given latitude.
func EarthRateNED(lat float64) r3.Vector {
	return r3.Vector{
		X: EarthRate * math.Cos(lat),
		Y: 0,
		Z: -EarthRate * math.Sin(lat),
	}
}

// StepPosition advances a geodetic position by one forward-Euler step of the
// curvilinear position kinematics: latitude and altitude from the meridian
// radius and down velocity, then longitude using the transverse radius at the
// already-advanced latitude. Radii are evaluated at the current latitude on
// every call.
func StepPosition(lat, lon, alt float64, vel r3.Vector, dt float64) (newLat, newLon, newAlt float64) {
	rm, rn := RadiiOfCurvature(lat)
	newLat = lat + vel.X*dt/(rm+alt)
	newLon = lon + vel.Y*dt/((rn+alt)*math.Cos(newLat))
	newAlt = alt - vel.Z*dt
	return newLat, newLon, newAlt
}

// TransportRateNED returns the rotation rate of the NED frame with respect to
// the Earth frame caused by motion over the curved surface, for NED velocity
// vel at the given latitude and altitude.
func TransportRateNED(lat, alt float64, vel r3.Vector) r3.Vector {
	rm, rn := RadiiOfCurvature(lat)
	return r3.Vector{
		X: vel.Y / (rn + alt),
		Y: -vel.X / (rm + alt),
		Z: -vel.Y * math.Tan(lat) / (rn + alt),
	}
}
