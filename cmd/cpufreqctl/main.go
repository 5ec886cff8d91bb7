package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/cpufreqctl/internal/config"
	"codeberg.org/mutker/cpufreqctl/internal/dvfs"
	"codeberg.org/mutker/cpufreqctl/internal/logger"
	"codeberg.org/mutker/cpufreqctl/internal/machine"
	"codeberg.org/mutker/cpufreqctl/internal/metrics"
	"codeberg.org/mutker/cpufreqctl/internal/msr"
	"codeberg.org/mutker/cpufreqctl/internal/pid"
	"github.com/shirou/gopsutil/v3/cpu"
)

var (
	cfg        *config.Config
	monitor    *machine.Monitor
	collector  metrics.Collector
	lastTarget uint64
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	monitor, err = machine.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize machine telemetry")
	}

	metricsCfg := metrics.DefaultConfig()
	metricsCfg.DBPath = cfg.MetricsDB
	metricsCfg.Enabled = cfg.Metrics
	collector, err = metrics.NewService(metricsCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Prime the load window so the first tick reports a real percentage.
	if _, err := cpu.Percent(0, false); err != nil {
		logger.Warn().Err(err).Msg("failed to prime load measurement")
	}
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write pid file")
	}
	defer pid.Remove()
	defer monitor.Close()
	defer collector.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := loop(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}

	// The userspace governor retains the last written speed; nothing to
	// restore here beyond saying so.
	logger.Info().Uint64("last_target_mhz", lastTarget).Msg("Exiting...")
}

func loop(ctx context.Context) error {
	policy := cfg.Policy()
	if err := policy.Validate(); err != nil {
		return err
	}

	interval := time.Duration(cfg.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging machine telemetry...")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshots := monitor.SampleAll()
			if len(snapshots) == 0 {
				logger.Warn().Msg("No cores produced telemetry this interval")
				continue
			}

			load, err := machineLoad()
			if err != nil {
				logger.Warn().Err(err).Msg("failed to read machine load")
				continue
			}
			hottest := hottestTemperature(snapshots)

			target, err := dvfs.Decide(load, hottest, policy)
			if err != nil {
				return err
			}

			applied := false
			if !cfg.Monitor && !withinHysteresis(target, lastTarget, uint64(cfg.Hysteresis)) {
				applyTarget(snapshots, target)
				lastTarget = target
				applied = true
			}

			logTelemetry(snapshots, load, hottest, target)
			record(ctx, snapshots, load, hottest, target, applied)
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// machineLoad returns the machine-wide busy percentage since the previous
// call, clamped to [0,100] by gopsutil itself.
func machineLoad() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}

	return percents[0], nil
}

func hottestTemperature(snapshots []msr.Snapshot) float64 {
	hottest := snapshots[0].TemperatureCelsius
	for _, s := range snapshots[1:] {
		if s.TemperatureCelsius > hottest {
			hottest = s.TemperatureCelsius
		}
	}

	return hottest
}

func withinHysteresis(newTarget, currentTarget, hysteresis uint64) bool {
	if newTarget > currentTarget {
		return newTarget-currentTarget <= hysteresis
	}

	return currentTarget-newTarget <= hysteresis
}

func applyTarget(snapshots []msr.Snapshot, target uint64) {
	for _, s := range snapshots {
		if err := dvfs.SetCoreFrequency(s.Core, target); err != nil {
			logger.Warn().Int("core", s.Core).Err(err).Msg("Failed to set core frequency")
		}
	}
	logger.Debug().Uint64("frequency_mhz", target).Msg("Applied target frequency")
}

func logTelemetry(snapshots []msr.Snapshot, load, hottest float64, target uint64) {
	if cfg.LogLevel == "debug" {
		for _, s := range snapshots {
			logger.Debug().
				Int("core", s.Core).
				Float64("temperature", s.TemperatureCelsius).
				Uint64("frequency_mhz", s.FrequencyMHz).
				Float64("power_watts", s.PowerWatts).
				Msg("")
		}
	}

	logger.Info().
		Int("cores", len(snapshots)).
		Float64("load_percent", load).
		Float64("max_temperature", hottest).
		Uint64("target_frequency_mhz", target).
		Bool("monitor", cfg.Monitor).
		Msg("")
}

func record(ctx context.Context, snapshots []msr.Snapshot, load, hottest float64, target uint64, applied bool) {
	cores := make([]metrics.CoreSample, 0, len(snapshots))
	for _, s := range snapshots {
		cores = append(cores, metrics.CoreSample{
			Core:               s.Core,
			TemperatureCelsius: s.TemperatureCelsius,
			FrequencyMHz:       s.FrequencyMHz,
			PowerWatts:         s.PowerWatts,
		})
	}

	snapshot := &metrics.Snapshot{
		Timestamp: time.Now(),
		Cores:     cores,
		Decision: metrics.Decision{
			LoadPercent:        load,
			MaxTemperature:     hottest,
			TargetFrequencyMHz: target,
			Applied:            applied,
		},
	}

	if err := collector.Record(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Msg("Failed to record metrics")
	}
}
