package machine

import (
	"sort"

	"codeberg.org/mutker/cpufreqctl/internal/errors"
	"codeberg.org/mutker/cpufreqctl/internal/logger"
	"codeberg.org/mutker/cpufreqctl/internal/msr"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Sampler is the per-core telemetry surface the Monitor drives. Satisfied by
// msr.Reader; tests inject fakes.
type Sampler interface {
	Core() int
	Sample() (msr.Snapshot, error)
	Close() error
}

// Monitor aggregates telemetry across all readable cores. The sampler
// collection is fixed at construction and treated as read-only afterwards;
// SampleAll must not run concurrently with Close.
type Monitor struct {
	coreCount int
	samplers  []Sampler
}

// New verifies the msr interface is available (loading the kernel module once
// if it is not), detects the logical core count, and opens a reader per core.
// Losing privileged access entirely is fatal; losing individual cores is not,
// those cores are simply absent from samples. Zero readable cores is treated
// as losing access entirely.
func New() (*Monitor, error) {
	errFactory := errors.New()

	if !msr.Available() {
		logger.Warn().Msg("msr interface unavailable, attempting to load kernel module")
		if err := msr.LoadModule(); err != nil {
			return nil, errFactory.Wrap(ErrInterfaceUnavailable, err)
		}
		if !msr.Available() {
			return nil, errFactory.New(ErrInterfaceUnavailable)
		}
	}

	coreCount, err := cpu.Counts(true)
	if err != nil {
		return nil, errFactory.Wrap(ErrCoreDetection, err)
	}

	samplers := make([]Sampler, 0, coreCount)
	for core := 0; core < coreCount; core++ {
		reader, err := msr.NewReader(core)
		if err != nil {
			logger.Warn().Int("core", core).Err(err).Msg("Skipping core: register channel unavailable")
			continue
		}
		samplers = append(samplers, reader)
	}

	if len(samplers) == 0 {
		return nil, errFactory.WithData(ErrNoCores, coreCount)
	}

	logger.Info().
		Int("cores", coreCount).
		Int("readers", len(samplers)).
		Msg("Machine telemetry initialized")

	return newMonitor(coreCount, samplers), nil
}

func newMonitor(coreCount int, samplers []Sampler) *Monitor {
	sort.Slice(samplers, func(i, j int) bool {
		return samplers[i].Core() < samplers[j].Core()
	})

	return &Monitor{
		coreCount: coreCount,
		samplers:  samplers,
	}
}

// CoreCount returns the hardware-detected core count, which may exceed the
// number of successfully opened readers.
func (m *Monitor) CoreCount() int {
	return m.coreCount
}

// Readers returns the number of cores with a working register channel.
func (m *Monitor) Readers() int {
	return len(m.samplers)
}

// SampleAll returns one snapshot per readable core in ascending core order.
// A failing core is logged and omitted; the call itself never fails. Power
// fields depend on elapsed time since the previous call, so repeated calls
// are not idempotent in value.
func (m *Monitor) SampleAll() []msr.Snapshot {
	snapshots := make([]msr.Snapshot, 0, len(m.samplers))
	for _, s := range m.samplers {
		snapshot, err := s.Sample()
		if err != nil {
			logger.Warn().Int("core", s.Core()).Err(err).Msg("Dropping core from sample")
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots
}

// Close releases every core's register channel.
func (m *Monitor) Close() error {
	var firstErr error
	for _, s := range m.samplers {
		if err := s.Close(); err != nil {
			logger.Warn().Int("core", s.Core()).Err(err).Msg("Failed to close register channel")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
