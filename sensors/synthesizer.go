package sensors

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/LZNUDT/ZUPT/geodesy"
	"github.com/LZNUDT/ZUPT/noise"
	"github.com/LZNUDT/ZUPT/strapdown"
	"github.com/LZNUDT/ZUPT/trajectory"
)

// Synthesizer produces raw measurement streams from a reference trajectory.
// Each Synthesizer owns one seeded noise source, so the same seed and call
// order reproduce the same streams exactly.
type Synthesizer struct {
	src    *noise.Source
	logger golog.Logger
}

// NewSynthesizer returns a Synthesizer drawing from the given seed.
func NewSynthesizer(seed uint64, logger golog.Logger) *Synthesizer {
	return &Synthesizer{src: noise.NewSource(seed), logger: logger}
}

// sampleStride finds how many trajectory samples separate consecutive sensor
// epochs at rateHz, requiring the trajectory to be uniformly sampled at an
// integer multiple of the sensor rate.
func sampleStride(tr trajectory.Trajectory, rateHz float64) (stride int, dt float64, err error) {
	trajDt := tr[1].T - tr[0].T
	for i := 2; i < len(tr); i++ {
		if math.Abs((tr[i].T-tr[i-1].T)-trajDt) > 1e-9 {
			return 0, 0, errors.Errorf("trajectory is not uniformly sampled: gap %f at sample %d, expected %f",
				tr[i].T-tr[i-1].T, i, trajDt)
		}
	}
	period := 1 / rateHz
	stride = int(math.Round(period / trajDt))
	if stride < 1 || math.Abs(float64(stride)*trajDt-period) > 1e-9 {
		return 0, 0, errors.Errorf("sensor rate %f Hz does not divide the trajectory rate %f Hz",
			rateHz, 1/trajDt)
	}
	if stride >= len(tr) {
		return 0, 0, errors.Errorf("trajectory spans less than one sensor period at %f Hz", rateHz)
	}
	return stride, float64(stride) * trajDt, nil
}

// trueInertial derives the ideal angular rate and specific force over
// [a, b] from the trajectory kinematics, the exact inverse of one strapdown
// step taken at a.
func trueInertial(a, b trajectory.Sample, dt float64) (gyro, accel r3.Vector) {
	qa := strapdown.FromEuler(a.Roll, a.Pitch, a.Yaw)
	qb := strapdown.FromEuler(b.Roll, b.Pitch, b.Yaw)

	wie := geodesy.EarthRateNED(a.Lat)
	wen := geodesy.TransportRateNED(a.Lat, a.Alt, a.Vel)

	wnb := strapdown.ToRotationVector(quat.Mul(quat.Conj(qa), qb)).Mul(1 / dt)
	gyro = wnb.Add(strapdown.RotateBack(qa, wie.Add(wen)))

	accN := b.Vel.Sub(a.Vel).Mul(1 / dt)
	grav := r3.Vector{Z: geodesy.Gravity(a.Lat, a.Alt)}
	coriolis := wie.Mul(2).Add(wen).Cross(a.Vel)
	accel = strapdown.RotateBack(qa, accN.Add(coriolis).Sub(grav))
	return gyro, accel
}

// axisSequence builds the full additive error sequence for one sensor axis:
// turn-on bias + Gauss-Markov bias instability + white noise.
func (sy *Synthesizer) axisSequence(fixed, biSigma, tau, whiteCoeff, dt float64, n int) ([]float64, error) {
	bias := sy.src.FixedBias(fixed)
	gm, err := sy.src.GaussMarkov(biSigma, tau, dt, n)
	if err != nil {
		return nil, err
	}
	white, err := sy.src.White(whiteCoeff, dt, n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = bias + gm[i] + white[i]
	}
	return out, nil
}

// Inertial synthesizes a raw IMU stream at the profile's rate. The trajectory
// must be uniformly sampled at an integer multiple of that rate; output
// timestamps are the trajectory's own, never reordered or duplicated.
func (sy *Synthesizer) Inertial(tr trajectory.Trajectory, prof NormalizedIMU) (InertialStream, error) {
	if err := tr.Validate(); err != nil {
		return nil, errors.Wrap(err, "inertial synthesis")
	}
	stride, dt, err := sampleStride(tr, prof.RateHz)
	if err != nil {
		return nil, errors.Wrap(err, "inertial synthesis")
	}
	n := (len(tr)-1)/stride + 1

	gyroErr := make([][]float64, 3)
	accelErr := make([][]float64, 3)
	for ax, p := range []struct{ fixed, bi, tau, arw float64 }{
		{prof.GyroFixedBias.X, prof.GyroBias.X, prof.GyroCorrTime.X, prof.GyroARW.X},
		{prof.GyroFixedBias.Y, prof.GyroBias.Y, prof.GyroCorrTime.Y, prof.GyroARW.Y},
		{prof.GyroFixedBias.Z, prof.GyroBias.Z, prof.GyroCorrTime.Z, prof.GyroARW.Z},
	} {
		if gyroErr[ax], err = sy.axisSequence(p.fixed, p.bi, p.tau, p.arw, dt, n); err != nil {
			return nil, err
		}
	}
	for ax, p := range []struct{ fixed, bi, tau, vrw float64 }{
		{prof.AccelFixedBias.X, prof.AccelBias.X, prof.AccelCorrTime.X, prof.AccelVRW.X},
		{prof.AccelFixedBias.Y, prof.AccelBias.Y, prof.AccelCorrTime.Y, prof.AccelVRW.Y},
		{prof.AccelFixedBias.Z, prof.AccelBias.Z, prof.AccelCorrTime.Z, prof.AccelVRW.Z},
	} {
		if accelErr[ax], err = sy.axisSequence(p.fixed, p.bi, p.tau, p.vrw, dt, n); err != nil {
			return nil, err
		}
	}

	st := make(InertialStream, n)
	var gyro, accel r3.Vector
	for j := 0; j < n; j++ {
		i := j * stride
		if i+stride < len(tr) {
			gyro, accel = trueInertial(tr[i], tr[i+stride], dt)
		}
		// The final epoch holds the last derived rate, keeping stream and
		// trajectory the same length.
		st[j] = InertialSample{
			T: tr[i].T,
			AngularRate: r3.Vector{
				X: gyro.X + gyroErr[0][j],
				Y: gyro.Y + gyroErr[1][j],
				Z: gyro.Z + gyroErr[2][j],
			},
			SpecificForce: r3.Vector{
				X: accel.X + accelErr[0][j],
				Y: accel.Y + accelErr[1][j],
				Z: accel.Z + accelErr[2][j],
			},
		}
	}
	sy.logger.Debugw("synthesized inertial stream", "profile", prof.Name, "samples", n, "rate_hz", prof.RateHz)
	return st, nil
}

// Fix synthesizes a raw position-fix stream at the profile's rate by adding
// per-axis Gaussian noise to the true position and velocity. Horizontal
// position noise is drawn in meters and mapped through the local radii of
// curvature into latitude and longitude.
func (sy *Synthesizer) Fix(tr trajectory.Trajectory, prof FixProfile) (FixStream, error) {
	if err := tr.Validate(); err != nil {
		return nil, errors.Wrap(err, "fix synthesis")
	}
	if err := prof.Validate(); err != nil {
		return nil, errors.Wrap(err, "fix synthesis")
	}
	stride, _, err := sampleStride(tr, prof.RateHz)
	if err != nil {
		return nil, errors.Wrap(err, "fix synthesis")
	}
	n := (len(tr)-1)/stride + 1

	posN := sy.src.Gaussian(prof.PosStd.X, n)
	posE := sy.src.Gaussian(prof.PosStd.Y, n)
	posD := sy.src.Gaussian(prof.PosStd.Z, n)
	velN := sy.src.Gaussian(prof.VelStd.X, n)
	velE := sy.src.Gaussian(prof.VelStd.Y, n)
	velD := sy.src.Gaussian(prof.VelStd.Z, n)

	st := make(FixStream, n)
	for j := 0; j < n; j++ {
		s := tr[j*stride]
		rm, rn := geodesy.RadiiOfCurvature(s.Lat)
		st[j] = FixSample{
			T:      s.T,
			Lat:    s.Lat + posN[j]/(rm+s.Alt),
			Lon:    s.Lon + posE[j]/((rn+s.Alt)*math.Cos(s.Lat)),
			Alt:    s.Alt - posD[j],
			Vel:    s.Vel.Add(r3.Vector{X: velN[j], Y: velE[j], Z: velD[j]}),
			PosStd: prof.PosStd,
			VelStd: prof.VelStd,
		}
	}
	sy.logger.Debugw("synthesized fix stream", "profile", prof.Name, "samples", n, "rate_hz", prof.RateHz)
	return st, nil
}
