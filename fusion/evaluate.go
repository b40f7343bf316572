package fusion

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	viamutils "go.viam.com/utils"

	"github.com/LZNUDT/ZUPT/eskf"
	"github.com/LZNUDT/ZUPT/sensors"
	"github.com/LZNUDT/ZUPT/trajectory"
)

// Evaluate fuses each candidate IMU grade against one shared fix stream
// synthesized from the trajectory. The runs are independent (each owns its
// streams, filter state, and covariance) and execute in parallel; results
// come back in the order of the candidates, with any per-run failures
// combined into one error. A run's seed derives from the configured seed and
// its position, so the whole evaluation is reproducible. When the config
// carries no filter options, each run gets DefaultOptions derived from its
// own grade.
func Evaluate(
	ctx context.Context,
	tr trajectory.Trajectory,
	candidates []sensors.IMUProfile,
	fixProf sensors.FixProfile,
	cfg Config,
	logger golog.Logger,
) ([]*Result, error) {
	if len(candidates) == 0 {
		return nil, errors.New("evaluation needs at least one candidate IMU profile")
	}
	fixes, err := sensors.NewSynthesizer(cfg.Seed, logger).Fix(tr, fixProf)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(candidates))
	runErrs := make([]error, len(candidates))

	var wg sync.WaitGroup
	wg.Add(len(candidates))
	for i, imu := range candidates {
		i, imu := i, imu
		viamutils.PanicCapturingGo(func() {
			defer wg.Done()
			runCfg := cfg
			runCfg.Seed = cfg.Seed + uint64(i) + 1
			if runCfg.Filter == (eskf.Options{}) {
				prof, err := imu.Normalize()
				if err != nil {
					runErrs[i] = err
					return
				}
				runCfg.Filter = DefaultOptions(prof, fixProf)
			}
			results[i], runErrs[i] = Run(ctx, tr, imu, fixes, runCfg, logger.Named(imu.Name))
		})
	}
	wg.Wait()

	return results, multierr.Combine(runErrs...)
}
