package msr

import "time"

// Intel MSR addresses. Layout assumptions (field offsets, the 100 MHz bus
// multiplier) are a hardware-family contract; they are not validated against
// the host silicon at runtime.
const (
	regThermStatus       = 0x19C // IA32_THERM_STATUS
	regTemperatureTarget = 0x1A2 // MSR_TEMPERATURE_TARGET
	regPerfStatus        = 0x198 // IA32_PERF_STATUS
	regRaplPowerUnit     = 0x606 // MSR_RAPL_POWER_UNIT
	regPkgEnergyStatus   = 0x611 // MSR_PKG_ENERGY_STATUS
)

const (
	busFrequencyMHz  = 100
	energyCounterMax = 0xFFFFFFFF
	microsPerSecond  = 1e6
)

// Snapshot is one core's telemetry at a capture instant. Immutable once
// produced; passed by value.
type Snapshot struct {
	Core               int
	TemperatureCelsius float64
	FrequencyMHz       uint64
	PowerWatts         float64
	TimestampUs        int64
}

// energySample is the power baseline: a raw counter reading and when it was
// taken. A nil baseline means no prior observation; a legitimately zero
// counter reading is therefore never mistaken for "unset".
type energySample struct {
	counter     uint64
	timestampUs int64
}

// Reader decodes one core's registers into physical units. Power readings
// mutate the stored baseline, so a Reader must be driven by at most one
// goroutine at a time; distinct cores' Readers share no state.
type Reader struct {
	core          int
	regs          RegisterSource
	now           func() int64
	energyUnit    float64
	energyUnitSet bool
	last          *energySample
}

// NewReader opens the core's register channel and wraps it in a Reader. The
// channel is owned by the Reader and released by Close.
func NewReader(core int) (*Reader, error) {
	ch, err := OpenChannel(core)
	if err != nil {
		return nil, err
	}

	return newReader(core, ch, microTime), nil
}

func newReader(core int, regs RegisterSource, now func() int64) *Reader {
	return &Reader{
		core: core,
		regs: regs,
		now:  now,
	}
}

func microTime() int64 {
	return time.Now().UnixMicro()
}

func (r *Reader) Core() int {
	return r.core
}

func (r *Reader) Close() error {
	return r.regs.Close()
}

// Temperature returns the core temperature in °C: TjMax minus the thermal
// status digital readout. Values are reported as decoded, without clamping;
// implausible readings indicate the register layout does not match the host.
func (r *Reader) Temperature() (float64, error) {
	target, err := r.regs.Read(regTemperatureTarget)
	if err != nil {
		return 0, err
	}
	tjMax := (target >> 16) & 0xFF

	status, err := r.regs.Read(regThermStatus)
	if err != nil {
		return 0, err
	}
	readout := (status >> 16) & 0x7F

	return float64(tjMax) - float64(readout), nil
}

// Frequency returns the current operating frequency in MHz: the performance
// status multiplier times the 100 MHz bus constant.
func (r *Reader) Frequency() (uint64, error) {
	perf, err := r.regs.Read(regPerfStatus)
	if err != nil {
		return 0, err
	}
	multiplier := (perf >> 8) & 0xFF

	return multiplier * busFrequencyMHz, nil
}

// Power returns package power in watts, computed as the energy-counter delta
// since the previous call divided by elapsed time. The first call establishes
// the baseline and returns 0; power is always a rate over an observed
// interval, never inferred from a single point.
func (r *Reader) Power() (float64, error) {
	if !r.energyUnitSet {
		unit, err := r.regs.Read(regRaplPowerUnit)
		if err != nil {
			return 0, err
		}
		scale := (unit >> 8) & 0x1F
		r.energyUnit = 1.0 / float64(uint64(1)<<scale)
		r.energyUnitSet = true
	}

	raw, err := r.regs.Read(regPkgEnergyStatus)
	if err != nil {
		return 0, err
	}
	counter := raw & energyCounterMax
	timestamp := r.now()

	prev := r.last
	r.last = &energySample{counter: counter, timestampUs: timestamp}

	if prev == nil {
		return 0, nil
	}

	delta := counter - prev.counter
	if counter < prev.counter {
		// The 32-bit hardware counter wrapped; reconstruct the monotonic
		// increase across the overflow.
		delta = (energyCounterMax - prev.counter) + counter
	}

	elapsed := timestamp - prev.timestampUs
	if elapsed <= 0 {
		// Two reads in the same microsecond carry no rate information.
		return 0, nil
	}

	return (float64(delta) * r.energyUnit) / (float64(elapsed) / microsPerSecond), nil
}

// Sample reads temperature, frequency and power and stamps the result. A
// failure of any sub-read fails the whole snapshot.
func (r *Reader) Sample() (Snapshot, error) {
	temperature, err := r.Temperature()
	if err != nil {
		return Snapshot{}, err
	}

	frequency, err := r.Frequency()
	if err != nil {
		return Snapshot{}, err
	}

	power, err := r.Power()
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Core:               r.core,
		TemperatureCelsius: temperature,
		FrequencyMHz:       frequency,
		PowerWatts:         power,
		TimestampUs:        r.now(),
	}, nil
}
