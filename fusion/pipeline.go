package fusion

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/LZNUDT/ZUPT/eskf"
	"github.com/LZNUDT/ZUPT/sensors"
	"github.com/LZNUDT/ZUPT/strapdown"
	"github.com/LZNUDT/ZUPT/trajectory"
)

// Config is the immutable per-run configuration.
type Config struct {
	Filter eskf.Options
	Seed   uint64 // noise seed; identical seeds reproduce a run exactly
}

// Result is the fused navigation series of one run. States and CovDiag are
// always the same length: a failed run truncates both at the sample that
// failed, so the state series is never inconsistent with its covariance.
type Result struct {
	Profile string
	States  []strapdown.State
	CovDiag [][]float64 // 15 error variances per sample
}

// Times returns the result's time base.
func (r *Result) Times() []float64 {
	ts := make([]float64, len(r.States))
	for i, s := range r.States {
		ts[i] = s.T
	}
	return ts
}

// PositionSigma returns the 1-sigma horizontal-and-vertical position
// uncertainties (north, east, down) in meters at sample i.
func (r *Result) PositionSigma(i int) r3.Vector {
	d := r.CovDiag[i]
	return r3.Vector{X: math.Sqrt(d[6]), Y: math.Sqrt(d[7]), Z: math.Sqrt(d[8])}
}

// DefaultOptions derives sensible initial filter uncertainties from the fix
// source accuracy and the IMU grade's turn-on bias spread.
func DefaultOptions(imu sensors.NormalizedIMU, fix sensors.FixProfile) eskf.Options {
	biasSpread := func(fixed, instability r3.Vector) r3.Vector {
		return r3.Vector{
			X: math.Hypot(fixed.X, instability.X),
			Y: math.Hypot(fixed.Y, instability.Y),
			Z: math.Hypot(fixed.Z, instability.Z),
		}
	}
	return eskf.Options{
		AttStd:       r3.Vector{X: 0.005, Y: 0.005, Z: 0.02},
		VelStd:       fix.VelStd.Mul(2),
		PosStd:       fix.PosStd.Mul(2),
		GyroBiasStd:  biasSpread(imu.GyroFixedBias, imu.GyroBias),
		AccelBiasStd: biasSpread(imu.AccelFixedBias, imu.AccelBias),
	}
}

// Run fuses one IMU grade against a pre-synthesized fix stream. The returned
// Result covers the synchronized inertial time range; if the filter diverges
// the Result holds the series up to the failing sample and the error carries
// the divergence detail.
func Run(
	ctx context.Context,
	tr trajectory.Trajectory,
	imu sensors.IMUProfile,
	fixes sensors.FixStream,
	cfg Config,
	logger golog.Logger,
) (*Result, error) {
	prof, err := imu.Normalize()
	if err != nil {
		return nil, err
	}
	synth := sensors.NewSynthesizer(cfg.Seed, logger)
	inertial, err := synth.Inertial(tr, prof)
	if err != nil {
		return nil, err
	}
	inertial, fixes, err = Synchronize(inertial, fixes)
	if err != nil {
		return nil, errors.Wrapf(err, "run %q", imu.Name)
	}

	filter, err := eskf.New(prof, cfg.Filter, logger)
	if err != nil {
		return nil, err
	}
	state, err := initialState(tr, inertial[0].T)
	if err != nil {
		return nil, err
	}

	res := &Result{Profile: imu.Name}
	res.States = append(res.States, state)
	res.CovDiag = append(res.CovDiag, filter.CovarianceDiagonal())

	fixIx := 0
	for fixIx < len(fixes) && fixes[fixIx].T <= state.T {
		fixIx++
	}

	for k := 0; k+1 < len(inertial); k++ {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrapf(err, "run %q sample %d", imu.Name, k+1)
		}
		samp := inertial[k]
		dt := inertial[k+1].T - samp.T
		gyro := samp.AngularRate.Sub(filter.GyroBias())
		accel := samp.SpecificForce.Sub(filter.AccelBias())

		state = strapdown.Step(state, gyro, accel, dt)
		if err := filter.Predict(state, accel, dt); err != nil {
			logger.Errorw("run failed during prediction", "profile", imu.Name, "sample", k+1, "t", state.T, "error", err)
			return res, errors.Wrapf(err, "run %q sample %d", imu.Name, k+1)
		}

		if fixIx < len(fixes) && fixes[fixIx].T <= state.T {
			state, err = filter.Update(state, gyro, fixes[fixIx])
			if err != nil {
				logger.Errorw("run failed during update", "profile", imu.Name, "sample", k+1, "t", state.T, "error", err)
				return res, errors.Wrapf(err, "run %q sample %d", imu.Name, k+1)
			}
			fixIx++
		}

		res.States = append(res.States, state)
		res.CovDiag = append(res.CovDiag, filter.CovarianceDiagonal())
	}
	logger.Infow("run complete", "profile", imu.Name, "samples", len(res.States), "fixes_used", fixIx)
	return res, nil
}

// initialState aligns the filter's starting point with the reference
// trajectory sample at the synchronized start time.
func initialState(tr trajectory.Trajectory, t float64) (strapdown.State, error) {
	for _, s := range tr {
		if math.Abs(s.T-t) < 1e-9 {
			return strapdown.NewState(s.T, s.Lat, s.Lon, s.Alt, s.Vel, s.Roll, s.Pitch, s.Yaw), nil
		}
	}
	return strapdown.State{}, errors.Errorf("no trajectory sample at synchronized start t=%f", t)
}
