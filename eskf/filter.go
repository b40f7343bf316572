// Package eskf implements the error-state Kalman filter that corrects a
// strapdown solution with periodic position fixes. The 15-component error
// state is [attitude error, velocity error, position error, gyro bias,
// accelerometer bias], each a 3-vector; position and velocity errors live in
// local NED meters. The filter owns the error covariance P and the running
// bias estimates; the mechanized solution itself is advanced by the
// strapdown package and handed in at each step.
package eskf

import (
	"fmt"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/LZNUDT/ZUPT/geodesy"
	"github.com/LZNUDT/ZUPT/sensors"
	"github.com/LZNUDT/ZUPT/strapdown"
)

// Error-state block offsets.
const (
	ixAtt      = 0
	ixVel      = 3
	ixPos      = 6
	ixGyroBias = 9
	ixAccBias  = 12
	stateDim   = 15
)

// Options is the immutable filter configuration: initial one-sigma
// uncertainties per axis, the IMU-to-antenna lever arm, and the divergence
// mitigation policy.
type Options struct {
	AttStd       r3.Vector // rad, initial alignment uncertainty
	VelStd       r3.Vector // m/s
	PosStd       r3.Vector // m, NED
	GyroBiasStd  r3.Vector // rad/s
	AccelBiasStd r3.Vector // m/s^2
	LeverArm     r3.Vector // m, body frame, IMU to antenna

	// ClampVariance keeps a run alive when a diagonal element of P goes
	// negative by clamping it to ClampEpsilon instead of failing. Every
	// clamp is logged; leaving this off treats PSD loss as divergence.
	ClampVariance bool
	ClampEpsilon  float64
}

// DivergenceError reports loss of positive semi-definiteness of P.
type DivergenceError struct {
	T     float64 // timestamp of the offending step
	Index int     // error-state component whose variance went negative
	Value float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("filter diverged at t=%.3f: variance of state %d is %g", e.T, e.Index, e.Value)
}

// Filter is the error-state Kalman filter. Not safe for concurrent use; each
// run owns one Filter.
type Filter struct {
	opts Options
	prof sensors.NormalizedIMU

	p         *mat.Dense // 15x15 error covariance
	gyroBias  r3.Vector  // rad/s, accumulated estimate
	accelBias r3.Vector  // m/s^2

	logger golog.Logger
}

// New builds a Filter with zero error-state mean, P initialized from the
// stated one-sigma uncertainties (off-diagonals zero), and zero bias
// estimates.
func New(prof sensors.NormalizedIMU, opts Options, logger golog.Logger) (*Filter, error) {
	for _, c := range []struct {
		name string
		v    r3.Vector
	}{
		{"attitude", opts.AttStd},
		{"velocity", opts.VelStd},
		{"position", opts.PosStd},
		{"gyro bias", opts.GyroBiasStd},
		{"accel bias", opts.AccelBiasStd},
	} {
		if c.v.X <= 0 || c.v.Y <= 0 || c.v.Z <= 0 {
			return nil, errors.Errorf("initial %s uncertainty must be positive on every axis, got %v", c.name, c.v)
		}
	}
	if opts.ClampVariance && opts.ClampEpsilon <= 0 {
		return nil, errors.New("variance clamping requires a positive epsilon")
	}

	p := mat.NewDense(stateDim, stateDim, nil)
	setDiagBlock(p, ixAtt, opts.AttStd)
	setDiagBlock(p, ixVel, opts.VelStd)
	setDiagBlock(p, ixPos, opts.PosStd)
	setDiagBlock(p, ixGyroBias, opts.GyroBiasStd)
	setDiagBlock(p, ixAccBias, opts.AccelBiasStd)

	return &Filter{opts: opts, prof: prof, p: p, logger: logger}, nil
}

func setDiagBlock(p *mat.Dense, ix int, std r3.Vector) {
	p.Set(ix, ix, std.X*std.X)
	p.Set(ix+1, ix+1, std.Y*std.Y)
	p.Set(ix+2, ix+2, std.Z*std.Z)
}

// GyroBias returns the current gyro bias estimate to be removed from raw
// angular-rate samples before mechanization.
func (f *Filter) GyroBias() r3.Vector { return f.gyroBias }

// AccelBias returns the current accelerometer bias estimate.
func (f *Filter) AccelBias() r3.Vector { return f.accelBias }

// Covariance returns a copy of the full error covariance.
func (f *Filter) Covariance() *mat.Dense {
	out := mat.NewDense(stateDim, stateDim, nil)
	out.Copy(f.p)
	return out
}

// CovarianceDiagonal returns a copy of P's diagonal, the per-component error
// variances downstream consumers turn into sigma envelopes.
func (f *Filter) CovarianceDiagonal() []float64 {
	d := make([]float64, stateDim)
	for i := range d {
		d[i] = f.p.At(i, i)
	}
	return d
}

// setSkew writes the cross-product matrix [v x] into the 3x3 block of m at
// (row, col), scaled by k.
func setSkew(m *mat.Dense, row, col int, v r3.Vector, k float64) {
	m.Set(row, col+1, -k*v.Z)
	m.Set(row, col+2, k*v.Y)
	m.Set(row+1, col, k*v.Z)
	m.Set(row+1, col+2, -k*v.X)
	m.Set(row+2, col, -k*v.Y)
	m.Set(row+2, col+1, k*v.X)
}

// setRotation writes the rotation matrix of q into the 3x3 block of m at
// (row, col), scaled by k.
func setRotation(m *mat.Dense, row, col int, q quat.Number, k float64) {
	ex := strapdown.Rotate(q, r3.Vector{X: 1})
	ey := strapdown.Rotate(q, r3.Vector{Y: 1})
	ez := strapdown.Rotate(q, r3.Vector{Z: 1})
	for i, c := range []r3.Vector{ex, ey, ez} {
		m.Set(row, col+i, k*c.X)
		m.Set(row+1, col+i, k*c.Y)
		m.Set(row+2, col+i, k*c.Z)
	}
}

// dynamics builds the continuous-time error dynamics F linearized about the
// mechanized state s and the bias-corrected specific force accel.
func (f *Filter) dynamics(s strapdown.State, accel r3.Vector) *mat.Dense {
	wie := geodesy.EarthRateNED(s.Lat)
	wen := geodesy.TransportRateNED(s.Lat, s.Alt, s.Vel)
	fn := strapdown.Rotate(s.Att, accel)

	fm := mat.NewDense(stateDim, stateDim, nil)

	// Attitude error: rotated by the navigation-frame rate, driven by the
	// residual gyro bias through the body-to-NED rotation.
	setSkew(fm, ixAtt, ixAtt, wie.Add(wen), -1)
	setRotation(fm, ixAtt, ixGyroBias, s.Att, -1)

	// Velocity error: tilts misproject the specific force, Coriolis couples
	// velocity error, residual accel bias drives directly.
	setSkew(fm, ixVel, ixAtt, fn, -1)
	setSkew(fm, ixVel, ixVel, wie.Mul(2).Add(wen), -1)
	setRotation(fm, ixVel, ixAccBias, s.Att, -1)

	// Position error integrates velocity error.
	for i := 0; i < 3; i++ {
		fm.Set(ixPos+i, ixVel+i, 1)
	}

	// Biases decay with their Gauss-Markov correlation times.
	setGaussMarkovDecay(fm, ixGyroBias, f.prof.GyroCorrTime)
	setGaussMarkovDecay(fm, ixAccBias, f.prof.AccelCorrTime)
	return fm
}

func setGaussMarkovDecay(m *mat.Dense, ix int, tau r3.Vector) {
	for i, t := range []float64{tau.X, tau.Y, tau.Z} {
		if t > 0 && !math.IsInf(t, 1) {
			m.Set(ix+i, ix+i, -1/t)
		}
	}
}

// processNoise builds the discrete process noise Q for one period dt from
// the profile's SI noise densities.
func (f *Filter) processNoise(dt float64) *mat.Dense {
	q := mat.NewDense(stateDim, stateDim, nil)
	setNoiseBlock(q, ixAtt, f.prof.GyroARW, dt)
	setNoiseBlock(q, ixVel, f.prof.AccelVRW, dt)
	setGaussMarkovNoise(q, ixGyroBias, f.prof.GyroBias, f.prof.GyroCorrTime, dt)
	setGaussMarkovNoise(q, ixAccBias, f.prof.AccelBias, f.prof.AccelCorrTime, dt)
	return q
}

func setNoiseBlock(q *mat.Dense, ix int, density r3.Vector, dt float64) {
	q.Set(ix, ix, density.X*density.X*dt)
	q.Set(ix+1, ix+1, density.Y*density.Y*dt)
	q.Set(ix+2, ix+2, density.Z*density.Z*dt)
}

func setGaussMarkovNoise(q *mat.Dense, ix int, sigma, tau r3.Vector, dt float64) {
	sigmas := []float64{sigma.X, sigma.Y, sigma.Z}
	taus := []float64{tau.X, tau.Y, tau.Z}
	for i := 0; i < 3; i++ {
		if taus[i] > 0 && !math.IsInf(taus[i], 1) {
			q.Set(ix+i, ix+i, 2*sigmas[i]*sigmas[i]/taus[i]*dt)
		}
	}
}

// Predict propagates the error covariance across one inertial sample period.
// s is the mechanized state the dynamics are linearized about and accel the
// bias-corrected specific force of the sample just integrated.
func (f *Filter) Predict(s strapdown.State, accel r3.Vector, dt float64) error {
	if dt <= 0 {
		return errors.Errorf("predict requires a positive period, got %f", dt)
	}
	fm := f.dynamics(s, accel)

	// First-order discretization: Phi = I + F*dt.
	phi := mat.NewDense(stateDim, stateDim, nil)
	phi.Scale(dt, fm)
	for i := 0; i < stateDim; i++ {
		phi.Set(i, i, phi.At(i, i)+1)
	}

	var tmp, next mat.Dense
	tmp.Mul(phi, f.p)
	next.Mul(&tmp, phi.T())
	next.Add(&next, f.processNoise(dt))

	f.symmetrize(&next)
	f.p.Copy(&next)
	return f.checkDiagonal(s.T)
}

// Update corrects the mechanized state with one position fix. gyro is the
// bias-corrected angular rate at the fix epoch, needed for the lever-arm
// velocity correction. It returns the corrected state; the filter's error
// mean returns to zero after the correction is injected.
func (f *Filter) Update(s strapdown.State, gyro r3.Vector, fix sensors.FixSample) (strapdown.State, error) {
	rm, rn := geodesy.RadiiOfCurvature(s.Lat)

	// Predicted antenna position and velocity from the mechanized solution
	// and the lever arm. The antenna moves with the body rate relative to
	// the navigation frame, so the earth and transport rates come off the
	// measured rate first.
	wie := geodesy.EarthRateNED(s.Lat)
	wen := geodesy.TransportRateNED(s.Lat, s.Alt, s.Vel)
	wnb := gyro.Sub(strapdown.RotateBack(s.Att, wie.Add(wen)))
	la := strapdown.Rotate(s.Att, f.opts.LeverArm)
	lv := strapdown.Rotate(s.Att, wnb.Cross(f.opts.LeverArm))

	// Innovation in NED meters and m/s: fix minus prediction.
	z := mat.NewVecDense(6, []float64{
		(fix.Lat-s.Lat)*(rm+s.Alt) - la.X,
		(fix.Lon-s.Lon)*(rn+s.Alt)*math.Cos(s.Lat) - la.Y,
		-(fix.Alt - s.Alt) - la.Z,
		fix.Vel.X - s.Vel.X - lv.X,
		fix.Vel.Y - s.Vel.Y - lv.Y,
		fix.Vel.Z - s.Vel.Z - lv.Z,
	})

	// Measurement model: position rows pick the position-error block,
	// velocity rows the velocity-error block.
	h := mat.NewDense(6, stateDim, nil)
	for i := 0; i < 3; i++ {
		h.Set(i, ixPos+i, 1)
		h.Set(3+i, ixVel+i, 1)
	}
	r := mat.NewDense(6, 6, nil)
	for i, sd := range []float64{
		fix.PosStd.X, fix.PosStd.Y, fix.PosStd.Z,
		fix.VelStd.X, fix.VelStd.Y, fix.VelStd.Z,
	} {
		r.Set(i, i, sd*sd)
	}

	// K = P H' (H P H' + R)^-1
	var pht, innovCov, gain mat.Dense
	pht.Mul(f.p, h.T())
	innovCov.Mul(h, &pht)
	innovCov.Add(&innovCov, r)
	var sInv mat.Dense
	if err := sInv.Inverse(&innovCov); err != nil {
		return s, errors.Wrapf(err, "innovation covariance is singular at t=%.3f", s.T)
	}
	gain.Mul(&pht, &sInv)

	var dx mat.VecDense
	dx.MulVec(&gain, z)

	// P = (I - K H) P, then re-symmetrize.
	var kh, next mat.Dense
	kh.Mul(&gain, h)
	ikh := identity()
	ikh.Sub(ikh, &kh)
	next.Mul(ikh, f.p)
	f.symmetrize(&next)
	f.p.Copy(&next)
	if err := f.checkDiagonal(s.T); err != nil {
		return s, err
	}

	// Inject the estimated corrections into the mechanized solution and the
	// bias estimates, then renormalize the attitude.
	att := strapdown.Normalize(quat.Mul(
		strapdown.FromRotationVector(r3.Vector{X: dx.AtVec(ixAtt), Y: dx.AtVec(ixAtt + 1), Z: dx.AtVec(ixAtt + 2)}),
		s.Att,
	))
	corrected := strapdown.State{
		T:   s.T,
		Lat: s.Lat + dx.AtVec(ixPos)/(rm+s.Alt),
		Lon: s.Lon + dx.AtVec(ixPos+1)/((rn+s.Alt)*math.Cos(s.Lat)),
		Alt: s.Alt - dx.AtVec(ixPos+2),
		Vel: s.Vel.Add(r3.Vector{X: dx.AtVec(ixVel), Y: dx.AtVec(ixVel + 1), Z: dx.AtVec(ixVel + 2)}),
		Att: att,
	}
	f.gyroBias = f.gyroBias.Add(r3.Vector{X: dx.AtVec(ixGyroBias), Y: dx.AtVec(ixGyroBias + 1), Z: dx.AtVec(ixGyroBias + 2)})
	f.accelBias = f.accelBias.Add(r3.Vector{X: dx.AtVec(ixAccBias), Y: dx.AtVec(ixAccBias + 1), Z: dx.AtVec(ixAccBias + 2)})
	return corrected, nil
}

func identity() *mat.Dense {
	m := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// symmetrize averages m with its transpose in place, countering the
// floating-point asymmetry both covariance forms accumulate.
func (f *Filter) symmetrize(m *mat.Dense) {
	for i := 0; i < stateDim; i++ {
		for j := i + 1; j < stateDim; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

// checkDiagonal enforces the PSD invariant on P's diagonal. A negative
// variance either fails the run as divergence or, when clamping is enabled,
// is pinned to epsilon and logged.
func (f *Filter) checkDiagonal(t float64) error {
	for i := 0; i < stateDim; i++ {
		v := f.p.At(i, i)
		if v >= 0 {
			continue
		}
		if !f.opts.ClampVariance {
			return &DivergenceError{T: t, Index: i, Value: v}
		}
		f.logger.Warnw("clamped negative error variance", "t", t, "state", i, "variance", v, "epsilon", f.opts.ClampEpsilon)
		f.p.Set(i, i, f.opts.ClampEpsilon)
	}
	return nil
}
