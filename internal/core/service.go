package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/linemodel/internal/config"
	"github.com/JonMunkholm/linemodel/internal/logging"
)

// Run outcomes reported to an Observer.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Observer receives one call per finished run. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveRun(procedure, outcome string, d time.Duration, rows int)
}

type nopObserver struct{}

func (nopObserver) ObserveRun(string, string, time.Duration, int) {}

// Service runs procedures for transport layers. It bounds concurrent runs
// and resolves options from presets and deployment defaults. The procedures
// themselves hold no state; the Service only adds admission and logging.
type Service struct {
	limiter  *RunLimiter
	presets  *PresetSet
	defaults Overrides
	observer Observer
}

// NewService creates a Service from configuration. obs may be nil.
func NewService(cfg *config.Config, obs Observer) (*Service, error) {
	var specs map[string]config.PresetSpec
	if cfg.Pipeline.PresetsFile != "" {
		loaded, err := config.LoadPresets(cfg.Pipeline.PresetsFile)
		if err != nil {
			return nil, err
		}
		specs = loaded
	}

	ps, err := NewPresetSet(specs)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}

	defaults := OverridesFromConfig(cfg.Pipeline)
	if _, err := ps.Resolve(defaults, PresetGroup); err != nil {
		return nil, fmt.Errorf("pipeline defaults: %w", err)
	}

	if obs == nil {
		obs = nopObserver{}
	}

	return &Service{
		limiter:  NewRunLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		presets:  ps,
		defaults: defaults,
		observer: obs,
	}, nil
}

// Limiter returns the run limiter, for status endpoints.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// Procedures lists every registered procedure.
func (s *Service) Procedures() []ProcedureInfo {
	return All()
}

// PresetNames lists every raw-data preset, built-in and loaded.
func (s *Service) PresetNames() []string {
	return s.presets.Names()
}

// Preset returns a named preset, built-in or loaded.
func (s *Service) Preset(name string) (AggregateOptions, bool) {
	return s.presets.Get(name)
}

// ResolveOptions layers request overrides on the deployment defaults and
// the chosen preset.
func (s *Service) ResolveOptions(ov Overrides) (AggregateOptions, error) {
	return s.presets.Resolve(s.defaults.Merge(ov), PresetGroup)
}

// RunLayout joins a layout export with the style list.
func (s *Service) RunLayout(ctx context.Context, layout, stylelist []byte, encoding string) (*Result, error) {
	opts := DefaultJoinOptions()
	if s.defaults.Encoding != "" {
		opts.Encoding = s.defaults.Encoding
	}
	if encoding != "" {
		opts.Encoding = encoding
	}

	return s.run(ctx, ProcedureLayout, func() (*Result, error) {
		return JoinLayout(layout, stylelist, opts)
	}, "encoding", opts.Encoding)
}

// RunRawData aggregates raw efficiency data against the style list.
func (s *Service) RunRawData(ctx context.Context, rawdata, stylelist []byte, ov Overrides) (*Result, error) {
	opts, err := s.ResolveOptions(ov)
	if err != nil {
		s.observer.ObserveRun(ProcedureRawData, FailureKind(err).String(), 0, 0)
		return nil, err
	}

	return s.run(ctx, ProcedureRawData, func() (*Result, error) {
		return AggregateRawData(rawdata, stylelist, opts)
	},
		"encoding", opts.Encoding,
		"join_key", opts.JoinKey,
		"rank_ceiling", opts.RankCeiling,
		"eff_floor", *opts.EffFloor,
		"missing_policy", opts.MissingPolicy,
	)
}

func (s *Service) run(ctx context.Context, procedure string, fn func() (*Result, error), fields ...any) (*Result, error) {
	logger := logging.WithFields(ctx, append([]any{"procedure", procedure}, fields...)...)

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("run rejected", "error", err)
		s.observer.ObserveRun(procedure, OutcomeRejected, 0, 0)
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	res, err := fn()
	elapsed := time.Since(start)

	if err != nil {
		outcome := OutcomeError
		if kind := FailureKind(err); kind != 0 {
			outcome = kind.String()
		}
		logger.Warn("run failed", "outcome", outcome, "error", err, "duration", elapsed)
		s.observer.ObserveRun(procedure, outcome, elapsed, 0)
		return nil, err
	}

	outcome := OutcomeOK
	if res.Empty {
		outcome = OutcomeEmpty
	}
	logger.Info("run completed",
		"run_id", res.RunID,
		"outcome", outcome,
		"rows", res.Rows(),
		"duration", elapsed,
	)
	for _, d := range res.Diagnostics {
		logger.Debug("diagnostic", "run_id", res.RunID, "message", d)
	}
	s.observer.ObserveRun(procedure, outcome, elapsed, res.Rows())
	return res, nil
}

// Shutdown waits for in-flight runs to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return fmt.Errorf("drain runs: %w", err)
	}
	return nil
}
